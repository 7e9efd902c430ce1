package pipeline

import (
	"strings"

	"github.com/mozo-virtual-core/server/internal/agent/catalog"
	"github.com/mozo-virtual-core/server/internal/agent/model"
)

const (
	OccasionRomantic = "romantica"
	OccasionFamily   = "familiar"
	OccasionBusiness = "negocio"
	OccasionGeneral  = "general"

	BudgetLow    = "bajo"
	BudgetMedium = "medio"
	BudgetHigh   = "alto"

	DietVegetarian = "vegetariano"
	DietVegan      = "vegano"
	DietGlutenFree = "sin_gluten"
)

type bucket struct {
	label    string
	keywords []string
}

// Keywords are matched against the accent-folded, lower-cased query. The
// first matching bucket wins for occasion and budget.
var (
	occasionBuckets = []bucket{
		{OccasionRomantic, []string{"romantic", "pareja", "ocasion especial", "aniversario"}},
		{OccasionFamily, []string{"familia", "ninos", "grupo"}},
		{OccasionBusiness, []string{"negocio", "trabajo", "formal"}},
	}
	budgetBuckets = []bucket{
		{BudgetLow, []string{"economic", "barato", "simple"}},
		{BudgetHigh, []string{"lujo", "premium", "ocasion especial"}},
	}
	dietBuckets = []bucket{
		{DietVegetarian, []string{"vegetarian"}},
		{DietVegan, []string{"vegan"}},
		{DietGlutenFree, []string{"sin gluten", "celiac"}},
	}
	// tableBuckets pick the catalog recommendation table from the query
	// itself. Occasion words like "negocio" carry no table of their own.
	tableBuckets = []bucket{
		{OccasionRomantic, []string{"romantic", "pareja"}},
		{OccasionFamily, []string{"familia", "ninos"}},
		{DietVegetarian, []string{"vegetarian", "vegan"}},
	}
	dailySpecialKeywords = []string{"especialidad", "plato del dia", "menu del dia"}
	cuisineBuckets = []bucket{
		{"carnes", []string{"carne", "ternera", "cordero", "cochinillo"}},
		{"pescados_mariscos", []string{"pescado", "marisco", "paella", "bacalao"}},
	}
)

var justifications = map[string]string{
	OccasionRomantic: "Recomendaciones pensadas para una ocasión especial, con platos elegantes y maridajes perfectos.",
	OccasionFamily:   "Recomendaciones pensadas para compartir en familia, con opciones que agradan a diferentes edades y gustos.",
	OccasionBusiness: "Platos profesionales y presentación impecable, ideales para reuniones de trabajo.",
	OccasionGeneral:  "Recomendaciones basadas en los platos más populares y mejor valorados de nuestro menú.",
}

// ExtractPreferences applies the keyword buckets to query.
func ExtractPreferences(query string) model.Preferences {
	q := catalog.Normalize(query)
	prefs := model.Preferences{
		Occasion: firstMatch(q, occasionBuckets, OccasionGeneral),
		Budget:   firstMatch(q, budgetBuckets, BudgetMedium),
		Diet:     allMatches(q, dietBuckets),
		Cuisine:  allMatches(q, cuisineBuckets),
	}
	return prefs
}

// Justification returns the fixed text for occasion, defaulting to general.
func Justification(occasion string) string {
	if j, ok := justifications[occasion]; ok {
		return j
	}
	return justifications[OccasionGeneral]
}

// recommendationTable returns the catalog table named by query, or "" when
// the query names none.
func recommendationTable(query string) string {
	return firstMatch(catalog.Normalize(query), tableBuckets, "")
}

// asksDailySpecial reports whether query is about the dish of the day.
func asksDailySpecial(query string) bool {
	return containsAny(catalog.Normalize(query), dailySpecialKeywords)
}

func firstMatch(q string, buckets []bucket, def string) string {
	for _, b := range buckets {
		if containsAny(q, b.keywords) {
			return b.label
		}
	}
	return def
}

func allMatches(q string, buckets []bucket) []string {
	var out []string
	for _, b := range buckets {
		if containsAny(q, b.keywords) {
			out = append(out, b.label)
		}
	}
	return out
}

func containsAny(q string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
