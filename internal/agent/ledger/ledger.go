package ledger

import (
	"fmt"
	"strings"

	"github.com/mozo-virtual-core/server/internal/agent/catalog"
	errx "github.com/mozo-virtual-core/server/internal/core/error"
)

const (
	MinQuantity = 1
	MaxQuantity = 99
)

var (
	ErrEmptyOrder   = errx.New(nil, errx.KindValidation, "the order is empty")
	ErrInvalidIndex = errx.New(nil, errx.KindValidation, "invalid item number")
	ErrOrderClosed  = errx.New(nil, errx.KindValidation, "the order is already paid and closed")
)

// OrderItem is one unit of a catalog item in the order.
type OrderItem struct {
	Name        string
	DisplayName string
	Price       int64
}

// Resolver maps free text to a catalog item.
type Resolver interface {
	Resolve(name string) (catalog.Item, error)
}

// PayResult distinguishes a fresh payment from a repeated request.
type PayResult int

const (
	PayProcessed PayResult = iota + 1
	PayAlreadyPaid
)

// Snapshot is a read-only copy of the ledger.
type Snapshot struct {
	Items []OrderItem
	Total int64
	Paid  bool
}

// Ledger holds the guest's order. Total always equals the sum of item prices
// and the paid flag never goes back to false. A Ledger is owned by a single
// session and is not safe for concurrent use.
type Ledger struct {
	resolver Resolver
	items    []OrderItem
	total    int64
	paid     bool
}

func New(resolver Resolver) *Ledger {
	return &Ledger{resolver: resolver}
}

// Add resolves name against the menu and appends quantity units of it.
// On any error the ledger is left unchanged.
func (l *Ledger) Add(name string, quantity int) (catalog.Item, error) {
	if l.paid {
		return catalog.Item{}, ErrOrderClosed
	}
	if quantity < MinQuantity || quantity > MaxQuantity {
		return catalog.Item{}, errx.Validation("quantity must be between %d and %d, got %d", MinQuantity, MaxQuantity, quantity)
	}
	it, err := l.resolver.Resolve(name)
	if err != nil {
		return catalog.Item{}, err
	}
	for i := 0; i < quantity; i++ {
		l.items = append(l.items, OrderItem{Name: it.Key, DisplayName: it.Name, Price: it.Price})
	}
	l.total += int64(quantity) * it.Price
	return it, nil
}

// Remove deletes the item at the 1-based position index.
func (l *Ledger) Remove(index int) (OrderItem, error) {
	if l.paid {
		return OrderItem{}, ErrOrderClosed
	}
	if len(l.items) == 0 {
		return OrderItem{}, ErrEmptyOrder
	}
	if index < 1 || index > len(l.items) {
		return OrderItem{}, fmt.Errorf("%w: the order has %d items, got %d", ErrInvalidIndex, len(l.items), index)
	}
	removed := l.items[index-1]
	l.items = append(l.items[:index-1], l.items[index:]...)
	l.total -= removed.Price
	return removed, nil
}

// Pay marks the order as paid. Items are kept for the receipt.
func (l *Ledger) Pay() (PayResult, error) {
	if len(l.items) == 0 {
		return 0, ErrEmptyOrder
	}
	if l.paid {
		return PayAlreadyPaid, nil
	}
	l.paid = true
	return PayProcessed, nil
}

func (l *Ledger) View() Snapshot {
	items := make([]OrderItem, len(l.items))
	copy(items, l.items)
	return Snapshot{Items: items, Total: l.total, Paid: l.paid}
}

func (l *Ledger) Total() int64 { return l.total }
func (l *Ledger) Paid() bool   { return l.paid }
func (l *Ledger) Len() int     { return len(l.items) }

// ExitAllowed reports whether the guest may leave: nothing ordered, or paid.
func (l *Ledger) ExitAllowed() bool {
	return len(l.items) == 0 || l.paid
}

// Pending reports whether there are unpaid items.
func (l *Ledger) Pending() bool {
	return !l.ExitAllowed()
}

// Receipt renders the snapshot as a numbered list with the total.
func (s Snapshot) Receipt() string {
	if len(s.Items) == 0 {
		return "Tu pedido está vacío. ¿Te gustaría agregar algo del menú?"
	}
	var b strings.Builder
	b.WriteString("Tu pedido actual:\n")
	for i, it := range s.Items {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, it.DisplayName, catalog.FormatPrice(it.Price))
	}
	fmt.Fprintf(&b, "Total a pagar: %s", catalog.FormatPrice(s.Total))
	if s.Paid {
		b.WriteString("\nPAGADO")
	}
	return b.String()
}
