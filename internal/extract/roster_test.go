package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/tntracker/internal/errors"
	"github.com/ppiankov/tntracker/internal/model"
)

const rosterV1 = `candidate,party,criminal_cases,education,age,total_assets_rs,liabilities_rs,2021_constituency,2021_district,sitting_MLA,myneta_url
A. Kumar,DMK,2,Graduate,45,"Rs 12,34,567 ~ 12 Lacs+",Nil,Kolathur,Chennai,yes,https://myneta.info/c/1
B. Devi,,Nil,,n/a,a lot of money,0,Gummidipoondi (SC),Tiruvallur,,
,DMK,0,,,,,Kolathur,,,
`

const rosterV2 = `candidate,party,criminal_cases,education,age,constituency,myneta_url,needs_review,review_note
A Kumar,DMK,2,Graduate,46,Kolathur,,yes,check spelling
`

func TestRosterParser_V1(t *testing.T) {
	recs, unitErrs, fatalErr := Collect(RosterParser{}.Parse(Input{SourceID: 7, Data: []byte(rosterV1), Year: 2026}))
	require.NoError(t, fatalErr)
	require.Len(t, recs, 2)
	require.Len(t, unitErrs, 1)

	pe, ok := errors.AsParseError(unitErrs[0])
	require.True(t, ok)
	assert.Equal(t, 4, pe.Row)

	kumar := recs[0].(*model.CandidateRecord)
	assert.Equal(t, int64(7), kumar.SourceID)
	assert.Equal(t, "A. Kumar", kumar.Name)
	assert.Equal(t, "a kumar", kumar.NameNormalized)
	assert.Equal(t, 2021, kumar.Year, "roster@1 describes 2021")
	assert.Equal(t, "Kolathur", kumar.Constituency)
	assert.Equal(t, model.Some[int64](45), kumar.Age)
	require.NotNil(t, kumar.Affidavit)
	assert.Equal(t, model.Some[int64](1234567), kumar.Affidavit.Assets)
	assert.Equal(t, model.Some[int64](0), kumar.Affidavit.Liabilities)
	assert.Equal(t, "yes", kumar.Affidavit.Details["sitting_mla"])
	assert.Equal(t, model.Some(string(model.StatusContesting)), kumar.Status)

	devi := recs[1].(*model.CandidateRecord)
	assert.Equal(t, "Independent", devi.Party)
	assert.Equal(t, "Gummidipoondi", devi.Constituency)
	assert.Equal(t, model.Unknown, devi.Age.Presence)
	assert.Equal(t, model.Some[int64](0), devi.Affidavit.CriminalCases)
	assert.Equal(t, model.Unknown, devi.Affidavit.Assets.Presence)
	require.Len(t, devi.Warnings, 1)
	assert.Equal(t, colAssets, devi.Warnings[0].Field)
}

func TestRosterParser_V2FlagsReview(t *testing.T) {
	recs, unitErrs, fatalErr := Collect(RosterParser{}.Parse(Input{Data: []byte(rosterV2), Year: 2026}))
	require.NoError(t, fatalErr)
	assert.Empty(t, unitErrs)
	require.Len(t, recs, 1)

	rec := recs[0].(*model.CandidateRecord)
	assert.Equal(t, 2026, rec.Year)
	assert.True(t, rec.NeedsReview)
	assert.Equal(t, "check spelling", rec.ReviewNote)
	assert.Equal(t, model.Absent, rec.Status.Presence)
}

func TestRosterParser_SchemaSelection(t *testing.T) {
	_, _, fatalErr := Collect(RosterParser{}.Parse(Input{Data: []byte(rosterV2), Schema: "roster@^1"}))
	require.Error(t, fatalErr)
	pe, ok := errors.AsParseError(fatalErr)
	require.True(t, ok)
	assert.True(t, pe.Fatal)
	assert.Contains(t, pe.Detail, "roster@1.0.0 needs 2021_constituency")

	_, _, fatalErr = Collect(RosterParser{}.Parse(Input{Data: []byte(rosterV2), Schema: "nosuch"}))
	assert.Error(t, fatalErr)
}

func TestRosterParser_ECIHeaders(t *testing.T) {
	data := "Candidate Name,AC Name,Party Name,Candidate Status,Serious Criminal Cases,Total Assets\n" +
		"K. Selvam,Madurai East,AIADMK,Accepted,1,\"₹1.5 Crore\"\n" +
		"M. Raja,Madurai East,,withdrawn-ish,,\n"

	recs, _, fatalErr := Collect(RosterParser{}.Parse(Input{Data: []byte(data), Year: 2026}))
	require.NoError(t, fatalErr)
	require.Len(t, recs, 2)

	selvam := recs[0].(*model.CandidateRecord)
	assert.Equal(t, model.Some("accepted"), selvam.Status)
	assert.Equal(t, model.Some[int64](15000000), selvam.Affidavit.Assets)
	assert.Equal(t, model.Some[int64](1), selvam.Affidavit.SeriousCases)

	raja := recs[1].(*model.CandidateRecord)
	assert.Equal(t, model.Unknown, raja.Status.Presence)
	assert.Len(t, raja.Warnings, 1)
}

func TestRosterParser_EmptyFile(t *testing.T) {
	_, _, fatalErr := Collect(RosterParser{}.Parse(Input{Data: nil}))
	assert.Error(t, fatalErr)
}
