package router

import "strings"

// Route is the dispatch decision for one utterance.
type Route int

const (
	Routine Route = iota
	Complex
)

func (r Route) String() string {
	if r == Complex {
		return "complex"
	}
	return "routine"
}

// complexKeywords mark requests that need the investigate/generate pipeline.
// Matching is plain substring containment on the lower-cased utterance, so
// "especial" also catches "especialidad".
var complexKeywords = []string{
	// recommendation requests
	"recomendar", "recomendación", "recomiendas", "sugerir", "sugieres",
	"ayuda a elegir", "no sé qué pedir",
	// occasions
	"romántica", "pareja", "familia", "negocio", "especial",
	// dietary constraints
	"vegetariano", "vegano", "sin gluten", "alergia", "celíaco",
	// reports
	"informe", "reporte",
}

// Classify decides whether utterance is Routine or Complex. It is pure and
// total: the empty string is Routine.
func Classify(utterance string) Route {
	u := strings.ToLower(utterance)
	for _, kw := range complexKeywords {
		if strings.Contains(u, kw) {
			return Complex
		}
	}
	return Routine
}
