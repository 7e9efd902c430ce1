package console

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBanner(t *testing.T) {
	b := Banner("La Taberna del Río", "Robino", false)
	assert.Contains(t, b, "BIENVENIDO A LA TABERNA DEL RÍO")
	assert.Contains(t, b, "Robino, tu mozo virtual")
	assert.Contains(t, b, "'salir'")
}

func TestGoodbye(t *testing.T) {
	assert.Contains(t, Goodbye("La Taberna del Río"), "¡HASTA LUEGO!")
}

func TestPlain(t *testing.T) {
	out, err := Plain("**Paella**")
	require.NoError(t, err)
	assert.Equal(t, "**Paella**", out)
}

func TestMarkdownRenderer(t *testing.T) {
	render := NewMarkdownRenderer(60)
	out, err := render("Te recomiendo la **Paella de Mariscos**.")
	require.NoError(t, err)
	assert.Contains(t, out, "Paella de Mariscos")
}
