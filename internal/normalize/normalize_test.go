package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/tntracker/internal/errors"
)

func TestName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"A. Kumar", "a kumar"},
		{"A Kumar", "a kumar"},
		{"Dr. M.K. STALIN", "m k stalin"},
		{"Thiru R. Senthil (Advocate)", "r senthil"},
		{"José  Ramírez", "jose ramirez"},
		{"  Edappadi K. Palaniswami  ", "edappadi k palaniswami"},
		{"மு.க. ஸ்டாலின்", "மு க ஸ்டாலின்"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Name(tt.in))
		})
	}
}

func TestName_TamilKeepsVowelSigns(t *testing.T) {
	got := Name("சீமான்")
	assert.Equal(t, "சீமான்", got)
	assert.True(t, IsTamil(got))
}

func TestConstituency(t *testing.T) {
	name, res := Constituency("Gummidipoondi (SC)")
	assert.Equal(t, "Gummidipoondi", name)
	assert.Equal(t, "SC", res)

	name, res = Constituency("Kolathur")
	assert.Equal(t, "Kolathur", name)
	assert.Equal(t, "GEN", res)
}

func TestReservation(t *testing.T) {
	v, ok := Reservation("Tiruvallur ( st )").Get()
	assert.True(t, ok)
	assert.Equal(t, "ST", v)

	assert.False(t, Reservation("Mylapore").IsKnown())
}

func TestHeader(t *testing.T) {
	assert.Equal(t, "candidate_name", Header("Candidate Name"))
	assert.Equal(t, "total_assets_rs", Header(" Total Assets (Rs.) "))
	assert.Equal(t, "2021_constituency", Header("2021_Constituency"))
	assert.Equal(t, "sitting_mla", Header("\ufeffsitting_MLA"))
}

func TestSkeleton(t *testing.T) {
	assert.Equal(t, Skeleton("senthil kumar"), Skeleton("sentil kumaar"))
	assert.Equal(t, Skeleton("dhanapal"), Skeleton("danapal"))
	assert.Equal(t, "anamalai", Skeleton("annamalai"))
}

func TestMoney(t *testing.T) {
	tests := []struct {
		in    string
		want  int64
		known bool
		err   bool
	}{
		{"Rs 12,34,567 ~ 12 Lacs+", 1234567, true, false},
		{"Rs 1,54,26,000 ~1 Crore+", 15426000, true, false},
		{"₹1.5 Crore", 15000000, true, false},
		{"2.5 lakh", 250000, true, false},
		{"INR 5,000", 5000, true, false},
		{"Nil", 0, true, false},
		{"Rs Nil", 0, true, false},
		{"", 0, false, false},
		{"N/A", 0, false, false},
		{"-", 0, false, false},
		{"about a lot", 0, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Money(tt.in)
			if tt.err {
				require.Error(t, err)
				assert.ErrorIs(t, err, errors.ErrInvalidInput)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.known, got.IsKnown())
			if tt.known {
				assert.Equal(t, tt.want, got.Value)
			}
		})
	}
}

func TestCount(t *testing.T) {
	got, err := Count("3")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Value)

	got, err = Count("nil")
	require.NoError(t, err)
	assert.True(t, got.IsKnown())
	assert.Equal(t, int64(0), got.Value)

	got, err = Count("45 years")
	require.NoError(t, err)
	assert.Equal(t, int64(45), got.Value)

	got, err = Count("na")
	require.NoError(t, err)
	assert.False(t, got.IsKnown())

	_, err = Count("many")
	assert.Error(t, err)
}

func TestYear(t *testing.T) {
	got, err := Year("2019")
	require.NoError(t, err)
	assert.Equal(t, int64(2019), got.Value)

	_, err = Year("19")
	assert.Error(t, err)
}

func TestTruthy(t *testing.T) {
	for _, s := range []string{"1", "TRUE", "yes", "Y", "Winner", "won"} {
		assert.True(t, Truthy(s), s)
	}
	for _, s := range []string{"0", "no", "", "lost"} {
		assert.False(t, Truthy(s), s)
	}
}

func TestDate(t *testing.T) {
	for _, s := range []string{"2021-03-15", "15-03-2021", "2021/03/15"} {
		d, err := Date(s)
		require.NoError(t, err, s)
		require.NotNil(t, d)
		assert.Equal(t, "2021-03-15", d.Format("2006-01-02"))
	}

	d, err := Date("")
	assert.NoError(t, err)
	assert.Nil(t, d)

	_, err = Date("March-ish")
	assert.Error(t, err)
}

func TestFormatIndian(t *testing.T) {
	tests := map[int64]string{
		0:           "0",
		999:         "999",
		1000:        "1,000",
		123456:      "1,23,456",
		12345678:    "1,23,45,678",
		-1234567:    "-12,34,567",
		15426000000: "15,42,60,00,000",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatIndian(in), "%d", in)
	}

	assert.Equal(t, "-", FormatRupees(nil))
	n := int64(250000)
	assert.Equal(t, "₹2,50,000", FormatRupees(&n))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "free-bus-travel-for-women", Slug("Free bus travel for women!"))
}
