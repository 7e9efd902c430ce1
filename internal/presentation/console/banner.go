package console

import (
	"fmt"
	"strings"

	"github.com/muesli/termenv"
)

const rule = "============================================================"

// Banner is the welcome text of an interactive session.
func Banner(restaurant, assistant string, colored bool) string {
	title := "    BIENVENIDO A " + strings.ToUpper(restaurant)
	if colored {
		p := termenv.ColorProfile()
		title = termenv.String(title).Bold().Foreground(p.Color("#c2410c")).String()
	}
	return fmt.Sprintf("%s\n%s\n%s\n\n%s, tu mozo virtual, está listo para atenderte.\n(Escribe 'salir' para terminar la conversación)\n",
		rule, title, rule, assistant)
}

// Goodbye closes a session that ended after payment.
func Goodbye(restaurant string) string {
	return fmt.Sprintf("%s\n¡HASTA LUEGO! ¡Esperamos verte pronto en %s!\n%s\n", rule, restaurant, rule)
}
