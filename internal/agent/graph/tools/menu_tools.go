package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"

	"github.com/mozo-virtual-core/server/internal/agent/catalog"
	"github.com/mozo-virtual-core/server/internal/agent/model"
	errx "github.com/mozo-virtual-core/server/internal/core/error"
)

const (
	ToolSearchMenu      = "search_menu"
	ToolShowMenu        = "show_menu"
	ToolRestaurantInfo  = "restaurant_info"
	ToolDailySpecial    = "daily_special"
	ToolRecommendDrink  = "recommend_drink"
	ToolAddToOrder      = "add_to_order"
	ToolViewOrder       = "view_order"
	ToolRemoveFromOrder = "remove_from_order"
	ToolProcessPayment  = "process_payment"
	ToolPaymentStatus   = "payment_status"
)

// Deps are the collaborators the restaurant tools are bound to. State is the
// session the tools act on.
type Deps struct {
	Catalog    *catalog.Catalog
	Retriever  retriever.Retriever
	SearchTopK int
	State      *model.ConversationState
	Now        func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// NewRestaurantRegistry registers every restaurant tool bound to d.
func NewRestaurantRegistry(d Deps, observer Observer) (*Registry, error) {
	if d.Catalog == nil || d.State == nil || d.State.Ledger == nil {
		return nil, fmt.Errorf("tool deps: catalog and session state are required")
	}
	r := NewRegistry(observer)
	if err := r.Register(MenuTools(d)...); err != nil {
		return nil, err
	}
	if err := r.Register(OrderTools(d)...); err != nil {
		return nil, err
	}
	return r, nil
}

// MenuTools are the read-only tools over the menu and restaurant data.
func MenuTools(d Deps) []Spec {
	return []Spec{
		{
			Name: ToolSearchMenu,
			Desc: "Busca información sobre platos, precios, ingredientes, especialidades, horarios y servicios de La Taberna del Río. Úsala para preguntas concretas sobre un plato o ingrediente.",
			Params: map[string]*schema.ParameterInfo{
				"query": {Type: schema.String, Desc: "Texto a buscar, por ejemplo 'paella' o 'sin gluten'.", Required: true},
			},
			Handler: d.searchMenu,
		},
		{
			Name:    ToolShowMenu,
			Desc:    "Muestra el menú completo con todos los platos y precios. Úsala cuando el cliente pida 'menú', 'carta' o 'ver el menú'.",
			Handler: d.showMenu,
		},
		{
			Name:    ToolRestaurantInfo,
			Desc:    "Devuelve dirección, teléfono, horarios, formas de pago y servicios del restaurante.",
			Handler: d.restaurantInfo,
		},
		{
			Name: ToolDailySpecial,
			Desc: "Devuelve la especialidad del día. Acepta 'hoy', 'mañana', 'ayer' o un día de la semana.",
			Params: map[string]*schema.ParameterInfo{
				"day": {Type: schema.String, Desc: "Día solicitado; por defecto 'hoy'."},
			},
			Handler: d.dailySpecial,
		},
		{
			Name: ToolRecommendDrink,
			Desc: "Recomienda la bebida ideal para maridar con un plato o categoría (carne, pescado, postre).",
			Params: map[string]*schema.ParameterInfo{
				"dish": {Type: schema.String, Desc: "Nombre del plato o categoría.", Required: true},
			},
			Handler: d.recommendDrink,
		},
	}
}

func (d Deps) searchMenu(ctx context.Context, args Args) (string, error) {
	query := args.String("query")
	if query == "" {
		return "", errx.Validation("indica qué quieres buscar en el menú")
	}
	if d.Retriever == nil {
		return "", errx.New(nil, errx.KindResourceUnavailable, "la búsqueda en el menú no está disponible")
	}
	var opts []retriever.Option
	if d.SearchTopK > 0 {
		opts = append(opts, retriever.WithTopK(d.SearchTopK))
	}
	docs, err := d.Retriever.Retrieve(ctx, query, opts...)
	if err != nil {
		return "", errx.Unavailable(err, "la búsqueda en el menú no está disponible")
	}
	if len(docs) == 0 {
		return fmt.Sprintf("No encontré información sobre %q en nuestro menú.", query), nil
	}
	var b strings.Builder
	b.WriteString("Información encontrada:\n")
	for _, doc := range docs {
		b.WriteString("- ")
		b.WriteString(doc.Content)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (d Deps) showMenu(context.Context, Args) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "MENÚ COMPLETO - %s\n", strings.ToUpper(d.Catalog.Restaurant.Name))
	for _, cat := range d.Catalog.Categories {
		fmt.Fprintf(&b, "\n%s:\n", strings.ToUpper(cat.Title))
		for _, it := range cat.Items {
			fmt.Fprintf(&b, "• %s - %s\n", it.Name, catalog.FormatPrice(it.Price))
			if it.Description != "" {
				fmt.Fprintf(&b, "  %s\n", it.Description)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (d Deps) restaurantInfo(context.Context, Args) (string, error) {
	r := d.Catalog.Restaurant
	var b strings.Builder
	fmt.Fprintf(&b, "Restaurante %s\n", r.Name)
	fmt.Fprintf(&b, "Ubicación: %s\n", r.Address)
	fmt.Fprintf(&b, "Teléfono: %s\n", r.Phone)
	if r.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", r.Email)
	}
	b.WriteString("Horarios:\n")
	for _, h := range r.Hours {
		fmt.Fprintf(&b, "- %s\n", h)
	}
	fmt.Fprintf(&b, "Capacidad: %d cubiertos\n", r.Capacity)
	fmt.Fprintf(&b, "Formas de pago: %s\n", r.PaymentMethods)
	if len(r.Services) > 0 {
		fmt.Fprintf(&b, "Servicios: %s", strings.Join(r.Services, "; "))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (d Deps) dailySpecial(_ context.Context, args Args) (string, error) {
	requested := args.String("day")
	day, rel, ok := catalog.ParseDay(requested, d.now())
	if !ok {
		return "", errx.Validation("no reconozco el día %q; usa 'hoy', 'mañana', 'ayer' o un día de la semana", requested)
	}
	name := catalog.DayName(day)
	it, ok := d.Catalog.Special(day)
	if !ok {
		return fmt.Sprintf("No hay especialidad programada para el %s.", strings.ToLower(name)), nil
	}

	var note string
	switch rel {
	case catalog.Today:
		note = fmt.Sprintf("Esta es nuestra especialidad de hoy. ¡Solo la servimos los %s!", strings.ToLower(name))
	case catalog.Tomorrow:
		note = fmt.Sprintf("Esta será nuestra especialidad de mañana. ¡Solo la servimos los %s!", strings.ToLower(name))
	case catalog.Yesterday:
		note = fmt.Sprintf("Esta fue nuestra especialidad de ayer. ¡Solo la servimos los %s!", strings.ToLower(name))
	default:
		note = fmt.Sprintf("Esta es nuestra especialidad de los %s. ¡Solo la servimos ese día!", strings.ToLower(name))
	}
	return fmt.Sprintf("ESPECIALIDAD DEL DÍA - %s\n%s - %s Precio: %s.\n%s",
		name, it.Name, it.Description, catalog.FormatPrice(it.Price), note), nil
}

func (d Deps) recommendDrink(_ context.Context, args Args) (string, error) {
	dish := args.String("dish")
	if text, ok := d.Catalog.Pairing(dish); ok {
		return text, nil
	}
	return fmt.Sprintf("Lo siento, no tengo una recomendación específica de maridaje para %q. ¿Puedes ser más específico?", dish), nil
}
