package catalog

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	errx "github.com/mozo-virtual-core/server/internal/core/error"
)

//go:embed menu.yaml
var menuYAML []byte

// Item is a single orderable dish or drink.
type Item struct {
	Key           string   `yaml:"-"`
	Name          string   `yaml:"name"`
	Category      string   `yaml:"-"`
	CategoryTitle string   `yaml:"-"`
	Price         int64    `yaml:"price"`
	Description   string   `yaml:"description"`
	Ingredients   []string `yaml:"ingredients"`
}

type Category struct {
	Key   string `yaml:"key"`
	Title string `yaml:"title"`
	Items []Item `yaml:"items"`
}

type Restaurant struct {
	Name           string   `yaml:"name"`
	Address        string   `yaml:"address"`
	Phone          string   `yaml:"phone"`
	Email          string   `yaml:"email"`
	Hours          []string `yaml:"hours"`
	Capacity       int      `yaml:"capacity"`
	Cuisine        string   `yaml:"cuisine"`
	Ambience       string   `yaml:"ambience"`
	PaymentMethods string   `yaml:"payment_methods"`
	Services       []string `yaml:"services"`
}

type Pairing struct {
	Keywords []string `yaml:"keywords"`
	Text     string   `yaml:"text"`
}

// Recommendation is an entry of the occasion/diet recommendation table.
type Recommendation struct {
	Item string `yaml:"item"`
	Note string `yaml:"note"`
}

type document struct {
	Restaurant      Restaurant                  `yaml:"restaurant"`
	Categories      []Category                  `yaml:"categories"`
	Specials        map[string]string           `yaml:"specials"`
	Pairings        []Pairing                   `yaml:"pairings"`
	Recommendations map[string][]Recommendation `yaml:"recommendations"`
}

// Catalog is the read-only menu of the restaurant. It is safe for concurrent
// use once loaded.
type Catalog struct {
	Restaurant Restaurant
	Categories []Category

	specials        map[time.Weekday]string
	pairings        []Pairing
	recommendations map[string][]Recommendation
	items           []Item
	byKey           map[string]int
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(menuYAML)
		if err != nil {
			panic(fmt.Sprintf("embedded menu is invalid: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// Load parses a YAML menu document and checks its cross references.
func Load(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errx.Configuration(err, "parse menu")
	}

	c := &Catalog{
		Restaurant:      doc.Restaurant,
		specials:        make(map[time.Weekday]string, len(doc.Specials)),
		pairings:        doc.Pairings,
		recommendations: make(map[string][]Recommendation, len(doc.Recommendations)),
		byKey:           map[string]int{},
	}

	for ci := range doc.Categories {
		cat := &doc.Categories[ci]
		for ii := range cat.Items {
			it := &cat.Items[ii]
			it.Key = Normalize(it.Name)
			it.Category = cat.Key
			it.CategoryTitle = cat.Title
			if it.Key == "" {
				return nil, errx.Configuration(nil, fmt.Sprintf("menu category %q has an unnamed item", cat.Key))
			}
			if it.Price <= 0 {
				return nil, errx.Configuration(nil, fmt.Sprintf("menu item %q has no price", it.Name))
			}
			if _, dup := c.byKey[it.Key]; dup {
				return nil, errx.Configuration(nil, fmt.Sprintf("menu item %q is declared twice", it.Name))
			}
			c.byKey[it.Key] = len(c.items)
			c.items = append(c.items, *it)
		}
	}
	c.Categories = doc.Categories

	for day, name := range doc.Specials {
		wd, ok := weekdays[strings.ToLower(day)]
		if !ok {
			return nil, errx.Configuration(nil, fmt.Sprintf("unknown weekday %q in specials", day))
		}
		if _, ok := c.Lookup(name); !ok {
			return nil, errx.Configuration(nil, fmt.Sprintf("special %q is not on the menu", name))
		}
		c.specials[wd] = name
	}

	for key, recs := range doc.Recommendations {
		for _, r := range recs {
			if _, ok := c.Lookup(r.Item); !ok {
				return nil, errx.Configuration(nil, fmt.Sprintf("recommendation %q is not on the menu", r.Item))
			}
		}
		c.recommendations[key] = recs
	}

	return c, nil
}

// Items returns every item in menu order.
func (c *Catalog) Items() []Item {
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

// Lookup finds an item by exact name, ignoring case and accents.
func (c *Catalog) Lookup(name string) (Item, bool) {
	i, ok := c.byKey[Normalize(name)]
	if !ok {
		return Item{}, false
	}
	return c.items[i], true
}

// Special returns the dish of the day for the given weekday.
func (c *Catalog) Special(day time.Weekday) (Item, bool) {
	name, ok := c.specials[day]
	if !ok {
		return Item{}, false
	}
	return c.Lookup(name)
}

// Pairing returns the first drink suggestion whose keywords appear in dish.
func (c *Catalog) Pairing(dish string) (string, bool) {
	d := Normalize(dish)
	if d == "" {
		return "", false
	}
	for _, p := range c.pairings {
		for _, kw := range p.Keywords {
			if strings.Contains(d, Normalize(kw)) {
				return p.Text, true
			}
		}
	}
	return "", false
}

// Recommendations returns a copy of the recommendation list for an occasion
// or diet key (romantica, familiar, vegetariano).
func (c *Catalog) Recommendations(key string) []Recommendation {
	recs := c.recommendations[key]
	out := make([]Recommendation, len(recs))
	copy(out, recs)
	return out
}

// AmbiguousError is returned when a name matches several menu items and none
// of them can be preferred.
type AmbiguousError struct {
	Query       string
	Suggestions []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%q matches several items: %s", e.Query, strings.Join(e.Suggestions, ", "))
}

const maxSuggestions = 5

// Resolve maps a free-text item name to a single catalog item.
//
// An exact (case and accent insensitive) match wins. Otherwise items whose key
// contains the request, or whose key is contained in it, are candidates. A
// single candidate is returned. With several, the longest key found verbatim
// inside the request wins when it is unique; anything else is ambiguous.
func (c *Catalog) Resolve(name string) (Item, error) {
	q := Normalize(name)
	if q == "" {
		return Item{}, errx.Validation("item name is empty")
	}
	if i, ok := c.byKey[q]; ok {
		return c.items[i], nil
	}

	var candidates []int
	for i, it := range c.items {
		if strings.Contains(it.Key, q) || strings.Contains(q, it.Key) {
			candidates = append(candidates, i)
		}
	}

	switch len(candidates) {
	case 0:
		return Item{}, errx.NotFound("%q is not on the menu", strings.TrimSpace(name))
	case 1:
		return c.items[candidates[0]], nil
	}

	best, bestLen, tie := -1, 0, false
	for _, i := range candidates {
		k := c.items[i].Key
		if !strings.Contains(q, k) {
			continue
		}
		switch {
		case len(k) > bestLen:
			best, bestLen, tie = i, len(k), false
		case len(k) == bestLen:
			tie = true
		}
	}
	if best >= 0 && !tie {
		return c.items[best], nil
	}

	ranked := make([]int, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(a, b int) bool {
		return len(c.items[ranked[a]].Key) < len(c.items[ranked[b]].Key)
	})
	if len(ranked) > maxSuggestions {
		ranked = ranked[:maxSuggestions]
	}
	amb := &AmbiguousError{Query: strings.TrimSpace(name)}
	for _, i := range ranked {
		amb.Suggestions = append(amb.Suggestions, c.items[i].Name)
	}
	return Item{}, errx.New(amb, errx.KindNotFound,
		fmt.Sprintf("%q matches several items, did you mean: %s?", amb.Query, strings.Join(amb.Suggestions, ", ")))
}
