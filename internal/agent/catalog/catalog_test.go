package catalog_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozo-virtual-core/server/internal/agent/catalog"
	errx "github.com/mozo-virtual-core/server/internal/core/error"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "cafe", catalog.Normalize("  Café "))
	assert.Equal(t, "albarino", catalog.Normalize("ALBARIÑO"))
	assert.Equal(t, "paella de mariscos", catalog.Normalize("Paella   de\tMariscos"))
	assert.Equal(t, []string{"cena", "romantica", "por", "favor"}, catalog.Tokens("¡Cena romántica, por favor!"))
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "$0", catalog.FormatPrice(0))
	assert.Equal(t, "$900", catalog.FormatPrice(900))
	assert.Equal(t, "$12.000", catalog.FormatPrice(12000))
	assert.Equal(t, "$1.234.567", catalog.FormatPrice(1234567))
	assert.Equal(t, "-$5.000", catalog.FormatPrice(-5000))
}

func TestDefaultCatalog(t *testing.T) {
	c := catalog.Default()
	assert.Equal(t, "La Taberna del Río", c.Restaurant.Name)

	it, ok := c.Lookup("rioja reserva")
	require.True(t, ok)
	assert.Equal(t, int64(12000), it.Price)
	assert.Equal(t, "bebidas", it.Category)

	special, ok := c.Special(time.Friday)
	require.True(t, ok)
	assert.Equal(t, "Paella de Mariscos", special.Name)

	recs := c.Recommendations("romantica")
	require.Len(t, recs, 3)
	assert.Equal(t, "Solomillo de Ternera", recs[0].Item)
	assert.Empty(t, c.Recommendations("negocio"))
}

func TestResolve(t *testing.T) {
	c := catalog.Default()

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{name: "exact", query: "Rioja Reserva", want: "Rioja Reserva"},
		{name: "accent insensitive", query: "CAFE", want: "Café"},
		{name: "partial name", query: "rioja", want: "Rioja Reserva"},
		{name: "name inside sentence", query: "dos copas de rioja reserva", want: "Rioja Reserva"},
		{name: "longest contained key wins", query: "mahou y agua mineral", want: "Agua Mineral"},
		{name: "specific paella", query: "paella de mariscos grande", want: "Paella de Mariscos"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it, err := c.Resolve(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, it.Name)
		})
	}
}

func TestResolveErrors(t *testing.T) {
	c := catalog.Default()

	_, err := c.Resolve("   ")
	assert.True(t, errx.Is(err, errx.KindValidation))

	_, err = c.Resolve("hamburguesa")
	assert.True(t, errx.Is(err, errx.KindNotFound))

	_, err = c.Resolve("paella")
	require.Error(t, err)
	assert.True(t, errx.Is(err, errx.KindNotFound))
	var amb *catalog.AmbiguousError
	require.True(t, errors.As(err, &amb))
	assert.ElementsMatch(t, []string{"Paella Valenciana", "Paella de Mariscos"}, amb.Suggestions)
	assert.Contains(t, errx.UserMessage(err), "Paella Valenciana")
}

func TestPairing(t *testing.T) {
	c := catalog.Default()

	text, ok := c.Pairing("Solomillo de Ternera")
	require.True(t, ok)
	assert.Contains(t, text, "Rioja Reserva")

	text, ok = c.Pairing("una paella")
	require.True(t, ok)
	assert.Contains(t, text, "Albariño")

	_, ok = c.Pairing("sushi")
	assert.False(t, ok)
}

func TestLoadRejectsBrokenMenus(t *testing.T) {
	_, err := catalog.Load([]byte("categories: [oops"))
	assert.True(t, errx.Is(err, errx.KindConfiguration))

	dup := `
categories:
  - key: a
    items:
      - {name: Flan, price: 1}
      - {name: flan, price: 2}
`
	_, err = catalog.Load([]byte(dup))
	assert.True(t, errx.Is(err, errx.KindConfiguration))

	badSpecial := `
categories:
  - key: a
    items:
      - {name: Flan, price: 1}
specials:
  monday: Tarta
`
	_, err = catalog.Load([]byte(badSpecial))
	assert.True(t, errx.Is(err, errx.KindConfiguration))
}
