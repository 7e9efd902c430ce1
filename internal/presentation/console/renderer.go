package console

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Renderer turns a reply into terminal output.
type Renderer func(markdown string) (string, error)

// Plain returns the reply unchanged.
func Plain(markdown string) (string, error) {
	return markdown, nil
}

// NewMarkdownRenderer renders replies with glamour, wrapping at width.
// It falls back to Plain when the renderer cannot be built.
func NewMarkdownRenderer(width int) Renderer {
	opts := []glamour.TermRendererOption{glamour.WithAutoStyle()}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return Plain
	}
	return func(markdown string) (string, error) {
		out, err := r.Render(markdown)
		if err != nil {
			return markdown, err
		}
		return strings.Trim(out, "\n"), nil
	}
}
