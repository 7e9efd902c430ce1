package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"github.com/mozo-virtual-core/server/internal/agent/catalog"
)

// Metadata keys set on every document.
const (
	MetaSource   = "source"
	MetaCategory = "category"
	MetaItem     = "item"
	MetaPrice    = "price"
)

const (
	SourceMenu       = "menu"
	SourceRestaurant = "restaurant_info"
	SourceSpecials   = "specials"
)

const DefaultTopK = 3

var stopwords = map[string]struct{}{
	"con": {}, "del": {}, "las": {}, "los": {}, "para": {}, "por": {}, "que": {},
	"una": {}, "uno": {}, "unos": {}, "unas": {}, "algo": {}, "quiero": {}, "tienen": {},
	"tienes": {}, "hay": {}, "como": {}, "cual": {}, "cuales": {}, "the": {}, "and": {},
}

type entry struct {
	doc    *schema.Document
	tokens map[string]struct{}
}

// MenuIndex is an in-memory keyword retriever over the restaurant catalog.
// Documents are scored by the share of query terms they contain. It is not
// authoritative: callers treat an empty result as "no information".
type MenuIndex struct {
	entries []entry
	topK    int
}

var _ retriever.Retriever = (*MenuIndex)(nil)

// NewMenuIndex builds one document per menu item plus the restaurant
// information and the weekly specials.
func NewMenuIndex(c *catalog.Catalog, topK int) *MenuIndex {
	if topK <= 0 {
		topK = DefaultTopK
	}
	idx := &MenuIndex{topK: topK}

	for _, it := range c.Items() {
		var b strings.Builder
		fmt.Fprintf(&b, "%s (%s): %s Precio: %s.", it.Name, it.CategoryTitle, it.Description, catalog.FormatPrice(it.Price))
		if len(it.Ingredients) > 0 {
			fmt.Fprintf(&b, " Ingredientes: %s.", strings.Join(it.Ingredients, ", "))
		}
		idx.add(&schema.Document{
			ID:      "menu:" + it.Key,
			Content: b.String(),
			MetaData: map[string]any{
				MetaSource:   SourceMenu,
				MetaCategory: it.Category,
				MetaItem:     it.Name,
				MetaPrice:    it.Price,
			},
		}, it.Category)
	}

	r := c.Restaurant
	idx.add(&schema.Document{
		ID: "restaurant:info",
		Content: fmt.Sprintf("%s. Ubicación: %s. Teléfono: %s. Horarios: %s. Cocina: %s. Ambiente: %s. Formas de pago: %s. Servicios: %s.",
			r.Name, r.Address, r.Phone, strings.Join(r.Hours, "; "), r.Cuisine, r.Ambience, r.PaymentMethods, strings.Join(r.Services, "; ")),
		MetaData: map[string]any{MetaSource: SourceRestaurant},
	}, "horario horarios ubicacion direccion telefono reservas pago servicios")

	var specials []string
	for _, day := range catalog.Weekdays {
		if it, ok := c.Special(day.Weekday); ok {
			specials = append(specials, fmt.Sprintf("%s: %s (%s)", day.Name, it.Name, catalog.FormatPrice(it.Price)))
		}
	}
	idx.add(&schema.Document{
		ID:       "restaurant:specials",
		Content:  "Especialidades del día. " + strings.Join(specials, ". ") + ".",
		MetaData: map[string]any{MetaSource: SourceSpecials},
	}, "especialidad especialidades plato dia hoy semana")

	return idx
}

func (m *MenuIndex) add(doc *schema.Document, extra string) {
	tokens := map[string]struct{}{}
	for _, tok := range catalog.Tokens(doc.Content + " " + extra) {
		tokens[tok] = struct{}{}
	}
	m.entries = append(m.entries, entry{doc: doc, tokens: tokens})
}

// Len returns the number of indexed documents.
func (m *MenuIndex) Len() int { return len(m.entries) }

// Retrieve returns at most TopK documents sharing terms with query, best
// first. Returned documents are copies carrying their score.
func (m *MenuIndex) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	topK := m.topK
	options := retriever.GetCommonOptions(&retriever.Options{TopK: &topK}, opts...)
	if options.TopK != nil && *options.TopK > 0 {
		topK = *options.TopK
	}
	threshold := 0.0
	if options.ScoreThreshold != nil {
		threshold = *options.ScoreThreshold
	}

	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, nil
	}

	type hit struct {
		pos   int
		score float64
	}
	var hits []hit
	for i, e := range m.entries {
		matched := 0
		for _, t := range terms {
			if _, ok := e.tokens[t]; ok {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		score := float64(matched) / float64(len(terms))
		if score < threshold {
			continue
		}
		hits = append(hits, hit{pos: i, score: score})
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].score > hits[b].score })
	if len(hits) > topK {
		hits = hits[:topK]
	}

	docs := make([]*schema.Document, 0, len(hits))
	for _, h := range hits {
		src := m.entries[h.pos].doc
		meta := make(map[string]any, len(src.MetaData)+1)
		for k, v := range src.MetaData {
			meta[k] = v
		}
		doc := &schema.Document{ID: src.ID, Content: src.Content, MetaData: meta}
		docs = append(docs, doc.WithScore(h.score))
	}
	return docs, nil
}

func queryTerms(query string) []string {
	seen := map[string]struct{}{}
	var terms []string
	for _, tok := range catalog.Tokens(query) {
		if len(tok) < 3 {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}
	return terms
}

// Source returns the source metadata of doc, or "unknown".
func Source(doc *schema.Document) string {
	if doc == nil {
		return "unknown"
	}
	if s, ok := doc.MetaData[MetaSource].(string); ok && s != "" {
		return s
	}
	return "unknown"
}
