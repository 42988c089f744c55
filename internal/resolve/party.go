package resolve

import (
	"strings"

	"github.com/ppiankov/tntracker/internal/model"
	"github.com/ppiankov/tntracker/internal/normalize"
)

// partyAliases maps normalized party names and common spellings to one key
var partyAliases = map[string]string{
	"dravida munnetra kazhagam":                "dmk",
	"admk":                                     "aiadmk",
	"naam tamilar katchi":                      "ntk",
	"naam tamizhar katchi":                     "ntk",
	"bharatiya janata party":                   "bjp",
	"indian national congress":                 "inc",
	"congress":                                 "inc",
	"pattali makkal katchi":                    "pmk",
	"viduthalai chiruthaigal katchi":           "vck",
	"marumalarchi dravida munnetra kazhagam":   "mdmk",
	"desiya murpokku dravida kazhagam":         "dmdk",
	"communist party of india":                 "cpi",
	"communist party of india marxist":         "cpi m",
	"cpim":                                     "cpi m",
	"indian union muslim league":               "iuml",
	"tamilaga vettri kazhagam":                 "tvk",
	"amma makkal munnettra kazagam":            "ammk",
	"independent":                              "ind",
	"makkal needhi maiam":                      "mnm",
	"all india anna dravida munnetra kazhagam": "aiadmk",
}

// PartyKey returns the lookup key for a party name or abbreviation.
func PartyKey(s string) string {
	switch strings.ToLower(strings.Join(strings.Fields(s), "")) {
	case "cpi(m)", "cpi(marxist)", "cpm":
		return "cpi m"
	}
	key := normalize.Party(s)
	if alias, ok := partyAliases[key]; ok {
		return alias
	}
	return key
}

// ResolveParty finds a party by normalized name, abbreviation or alias.
// Parties are never fuzzy matched.
func ResolveParty(name string, pool []model.Party) (model.Party, bool) {
	want := PartyKey(name)
	if want == "" {
		return model.Party{}, false
	}
	var best model.Party
	found := false
	for _, p := range pool {
		if PartyKey(p.Name) != want && (p.Abbreviation == nil || PartyKey(*p.Abbreviation) != want) {
			continue
		}
		if !found || p.ID < best.ID {
			best, found = p, true
		}
	}
	return best, found
}
