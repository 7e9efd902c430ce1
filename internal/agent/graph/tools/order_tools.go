package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/mozo-virtual-core/server/internal/agent/catalog"
	"github.com/mozo-virtual-core/server/internal/agent/ledger"
	errx "github.com/mozo-virtual-core/server/internal/core/error"
)

// OrderTools operate on the session ledger.
func OrderTools(d Deps) []Spec {
	return []Spec{
		{
			Name: ToolAddToOrder,
			Desc: "Agrega un plato o bebida al pedido del cliente. Usa el nombre del menú.",
			Params: map[string]*schema.ParameterInfo{
				"item":     {Type: schema.String, Desc: "Nombre del plato o bebida.", Required: true},
				"quantity": {Type: schema.Integer, Desc: fmt.Sprintf("Cantidad entre %d y %d; por defecto 1.", ledger.MinQuantity, ledger.MaxQuantity)},
			},
			Handler: d.addToOrder,
		},
		{
			Name:    ToolViewOrder,
			Desc:    "Muestra el pedido actual numerado y el total a pagar.",
			Handler: d.viewOrder,
		},
		{
			Name: ToolRemoveFromOrder,
			Desc: "Elimina un item del pedido por su número, tal como aparece en view_order.",
			Params: map[string]*schema.ParameterInfo{
				"item_number": {Type: schema.Integer, Desc: "Número del item, empezando en 1.", Required: true},
			},
			Handler: d.removeFromOrder,
		},
		{
			Name:    ToolProcessPayment,
			Desc:    "Procesa el pago del pedido actual. Úsala solo cuando el cliente quiera pagar.",
			Handler: d.processPayment,
		},
		{
			Name:    ToolPaymentStatus,
			Desc:    "Indica si el pedido del cliente ya está pagado.",
			Handler: d.paymentStatus,
		},
	}
}

func (d Deps) addToOrder(_ context.Context, args Args) (string, error) {
	qty := args.Int("quantity", 1)
	l := d.State.Ledger
	it, err := l.Add(args.String("item"), qty)
	if err != nil {
		return "", orderError(err, l)
	}
	return fmt.Sprintf("[OK] Agregado al pedido: %dx %s (%s cada uno)\nTotal actual: %s",
		qty, it.Name, catalog.FormatPrice(it.Price), catalog.FormatPrice(l.Total())), nil
}

func (d Deps) viewOrder(context.Context, Args) (string, error) {
	return d.State.Ledger.View().Receipt(), nil
}

func (d Deps) removeFromOrder(_ context.Context, args Args) (string, error) {
	l := d.State.Ledger
	removed, err := l.Remove(args.Int("item_number", 0))
	if err != nil {
		return "", orderError(err, l)
	}
	return fmt.Sprintf("[OK] Eliminado: %s\nNuevo total: %s", removed.DisplayName, catalog.FormatPrice(l.Total())), nil
}

func (d Deps) processPayment(context.Context, Args) (string, error) {
	l := d.State.Ledger
	res, err := l.Pay()
	if err != nil {
		return "", orderError(err, l)
	}
	if res == ledger.PayAlreadyPaid {
		return "[OK] Ya has pagado tu pedido. ¡Gracias por tu visita!", nil
	}
	d.State.MarkCheckoutComplete()
	return fmt.Sprintf("[OK] PAGO PROCESADO EXITOSAMENTE\nTotal pagado: %s\n¡Gracias por tu visita! Tu pedido está siendo preparado. ¡Que disfrutes tu comida!",
		catalog.FormatPrice(l.Total())), nil
}

func (d Deps) paymentStatus(context.Context, Args) (string, error) {
	l := d.State.Ledger
	switch {
	case l.Len() == 0:
		return "No tienes ningún pedido activo.", nil
	case l.Paid():
		return "[OK] Has pagado tu pedido. ¡Gracias por tu visita!", nil
	default:
		return fmt.Sprintf("Tu pedido de %s está pendiente de pago. Usa %s cuando estés listo.", catalog.FormatPrice(l.Total()), ToolProcessPayment), nil
	}
}

// orderError rewords ledger failures for the guest, keeping their kind.
func orderError(err error, l *ledger.Ledger) error {
	var amb *catalog.AmbiguousError
	switch {
	case errors.Is(err, ledger.ErrEmptyOrder):
		return errx.New(err, errx.KindValidation, "tu pedido está vacío")
	case errors.Is(err, ledger.ErrInvalidIndex):
		return errx.New(err, errx.KindValidation, fmt.Sprintf("número inválido: tu pedido tiene %d items, usa %s para ver los números", l.Len(), ToolViewOrder))
	case errors.Is(err, ledger.ErrOrderClosed):
		return errx.New(err, errx.KindValidation, "el pedido ya está pagado y cerrado")
	case errors.As(err, &amb):
		return errx.New(err, errx.KindNotFound, fmt.Sprintf("%q coincide con varios platos: %s. ¿Cuál prefieres?", amb.Query, strings.Join(amb.Suggestions, ", ")))
	case errx.Is(err, errx.KindNotFound):
		return errx.New(err, errx.KindNotFound, "no encontré ese plato en el menú; consulta el menú para ver los platos disponibles")
	case errx.Is(err, errx.KindValidation):
		return errx.New(err, errx.KindValidation, fmt.Sprintf("la cantidad debe estar entre %d y %d y el nombre no puede estar vacío", ledger.MinQuantity, ledger.MaxQuantity))
	default:
		return err
	}
}
