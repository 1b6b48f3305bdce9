// Package recommend derives fertilizer recommendations from nutrient findings.
package recommend

import (
	"strings"

	"cropcheck/entities"
)

// Rule matches a fertilizer to a nutrient code. Rules are evaluated in slice
// order; the first rule whose predicate accepts a fertilizer wins.
type Rule struct {
	Code  string
	Name  string
	Match func(f entities.Fertilizer) bool
}

// Fallback is used for text when no fertilizer matches, and always for
// rate and method.
type Fallback struct {
	Text   string
	Rate   string
	Method string
}

func formulationIs(ratios ...string) func(entities.Fertilizer) bool {
	return func(f entities.Fertilizer) bool {
		got := normalizeFormulation(f.Formulation)
		for _, r := range ratios {
			if got == normalizeFormulation(r) {
				return true
			}
		}
		return false
	}
}

func nameContains(words ...string) func(entities.Fertilizer) bool {
	return func(f entities.Fertilizer) bool {
		name := strings.ToLower(f.FertName)
		for _, w := range words {
			if strings.Contains(name, strings.ToLower(w)) {
				return true
			}
		}
		return false
	}
}

func normalizeFormulation(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t':
			return -1
		case '–', '—', '/':
			return '-'
		}
		return r
	}, strings.TrimSpace(s))
}

// DefaultRules is the priority-ordered rule table.
var DefaultRules = []Rule{
	{Code: "N", Name: "urea ratio", Match: formulationIs("46-0-0")},
	{Code: "N", Name: "urea name", Match: nameContains("urea", "ยูเรีย")},
	{Code: "N", Name: "ammonium sulfate ratio", Match: formulationIs("21-0-0")},
	{Code: "P", Name: "triple superphosphate ratio", Match: formulationIs("0-46-0")},
	{Code: "P", Name: "DAP ratio", Match: formulationIs("18-46-0")},
	{Code: "P", Name: "phosphate name", Match: nameContains("phosphate", "ฟอสเฟต")},
	{Code: "K", Name: "muriate of potash ratio", Match: formulationIs("0-0-60")},
	{Code: "K", Name: "sulfate of potash ratio", Match: formulationIs("0-0-50")},
	{Code: "K", Name: "potash name", Match: nameContains("potash", "potassium chloride", "โพแทช")},
	{Code: "Ca", Name: "calcium nitrate ratio", Match: formulationIs("15.5-0-0")},
	{Code: "Ca", Name: "calcium name", Match: nameContains("calcium nitrate", "gypsum", "lime", "ปูน")},
	{Code: "Mg", Name: "magnesium name", Match: nameContains("magnesium sulfate", "kieserite", "dolomite", "โดโลไมท์")},
	{Code: "S", Name: "sulfate name", Match: nameContains("ammonium sulfate", "gypsum")},
	{Code: "Fe", Name: "iron name", Match: nameContains("ferrous sulfate", "iron chelate")},
	{Code: "Zn", Name: "zinc name", Match: nameContains("zinc sulfate", "zinc")},
	{Code: "B", Name: "boron name", Match: nameContains("borax", "boric", "solubor")},
	{Code: "Mn", Name: "manganese name", Match: nameContains("manganese sulfate")},
	{Code: "Cu", Name: "copper name", Match: nameContains("copper sulfate")},
}

// DefaultFallbacks holds per-code defaults. genericFallback covers codes not listed.
var DefaultFallbacks = map[string]Fallback{
	"N":  {Text: "Apply a nitrogen fertilizer such as urea (46-0-0) split over two applications.", Rate: "100-200 g/tree", Method: "broadcast around the drip line, then water in"},
	"P":  {Text: "Apply a phosphate fertilizer (0-46-0 or 18-46-0) at the start of the rainy season.", Rate: "100-150 g/tree", Method: "band placement around the drip line"},
	"K":  {Text: "Apply potash (0-0-60) to correct potassium deficiency.", Rate: "150-250 g/tree", Method: "broadcast around the drip line"},
	"Ca": {Text: "Apply agricultural lime or gypsum to raise available calcium.", Rate: "300-500 g/tree", Method: "spread on the soil surface and incorporate"},
	"Mg": {Text: "Apply dolomite or magnesium sulfate.", Rate: "100-200 g/tree", Method: "soil application; foliar 2% MgSO4 for fast response"},
	"S":  {Text: "Apply a sulfate-bearing fertilizer such as ammonium sulfate.", Rate: "100 g/tree", Method: "broadcast around the drip line"},
	"Fe": {Text: "Apply chelated iron as a foliar spray.", Rate: "0.1-0.2% solution", Method: "foliar spray every 2 weeks"},
	"Zn": {Text: "Apply zinc sulfate as a foliar spray.", Rate: "0.2-0.5% solution", Method: "foliar spray on new flush"},
	"B":  {Text: "Apply borax sparingly; boron toxicity occurs at low doses.", Rate: "10-20 g/tree", Method: "soil application, evenly spread"},
	"Mn": {Text: "Apply manganese sulfate as a foliar spray.", Rate: "0.2% solution", Method: "foliar spray"},
	"Cu": {Text: "Apply copper sulfate as a foliar spray.", Rate: "0.1% solution", Method: "foliar spray"},
}

var genericFallback = Fallback{
	Text:   "Nutrient deficiency detected; consult a soil test before applying fertilizer.",
	Rate:   "per soil test",
	Method: "as advised by an agronomist",
}

// MatchFertilizer returns the first fertilizer accepted by the first matching
// rule for code, or nil. fertilizers are scanned in the given order.
func MatchFertilizer(rules []Rule, code string, fertilizers []entities.Fertilizer) *entities.Fertilizer {
	for _, r := range rules {
		if r.Code != code {
			continue
		}
		for i := range fertilizers {
			if r.Match(fertilizers[i]) {
				f := fertilizers[i]
				return &f
			}
		}
	}
	return nil
}
