package ledger_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mozo-virtual-core/server/internal/agent/catalog"
	"github.com/mozo-virtual-core/server/internal/agent/ledger"
	errx "github.com/mozo-virtual-core/server/internal/core/error"
)

func sum(items []ledger.OrderItem) int64 {
	var s int64
	for _, it := range items {
		s += it.Price
	}
	return s
}

func TestOrderPayScenario(t *testing.T) {
	l := ledger.New(catalog.Default())

	it, err := l.Add("Rioja Reserva", 2)
	require.NoError(t, err)
	assert.Equal(t, "Rioja Reserva", it.Name)
	assert.Equal(t, int64(24000), l.Total())
	assert.Equal(t, 2, l.Len())
	assert.False(t, l.ExitAllowed())

	removed, err := l.Remove(1)
	require.NoError(t, err)
	assert.Equal(t, int64(12000), removed.Price)
	assert.Equal(t, int64(12000), l.Total())

	res, err := l.Pay()
	require.NoError(t, err)
	assert.Equal(t, ledger.PayProcessed, res)

	snap := l.View()
	assert.True(t, snap.Paid)
	assert.Equal(t, int64(12000), snap.Total)
	assert.Len(t, snap.Items, 1)
	assert.True(t, l.ExitAllowed())
}

func TestPayIdempotent(t *testing.T) {
	l := ledger.New(catalog.Default())
	_, err := l.Add("café", 1)
	require.NoError(t, err)

	_, err = l.Pay()
	require.NoError(t, err)
	before := l.View()

	res, err := l.Pay()
	require.NoError(t, err)
	assert.Equal(t, ledger.PayAlreadyPaid, res)
	assert.Equal(t, before, l.View())
}

func TestPayEmptyOrder(t *testing.T) {
	l := ledger.New(catalog.Default())
	_, err := l.Pay()
	assert.ErrorIs(t, err, ledger.ErrEmptyOrder)
	assert.False(t, l.Paid())
	assert.True(t, l.ExitAllowed())
}

func TestAddRejections(t *testing.T) {
	l := ledger.New(catalog.Default())

	_, err := l.Add("flan de caramelo", 0)
	assert.True(t, errx.Is(err, errx.KindValidation))
	_, err = l.Add("flan de caramelo", 100)
	assert.True(t, errx.Is(err, errx.KindValidation))
	_, err = l.Add("pizza", 1)
	assert.True(t, errx.Is(err, errx.KindNotFound))
	_, err = l.Add("paella", 1)
	assert.True(t, errx.Is(err, errx.KindNotFound))

	assert.Zero(t, l.Len())
	assert.Zero(t, l.Total())
}

func TestRemoveOutOfRange(t *testing.T) {
	l := ledger.New(catalog.Default())
	_, err := l.Remove(1)
	assert.ErrorIs(t, err, ledger.ErrEmptyOrder)

	_, err = l.Add("mahou", 2)
	require.NoError(t, err)

	for _, idx := range []int{0, -1, 3} {
		_, err = l.Remove(idx)
		assert.ErrorIs(t, err, ledger.ErrInvalidIndex)
	}
	assert.Equal(t, int64(12000), l.Total())
}

func TestClosedAfterPayment(t *testing.T) {
	l := ledger.New(catalog.Default())
	_, err := l.Add("tortilla española", 1)
	require.NoError(t, err)
	_, err = l.Pay()
	require.NoError(t, err)

	_, err = l.Add("flan de caramelo", 1)
	assert.ErrorIs(t, err, ledger.ErrOrderClosed)
	_, err = l.Remove(1)
	assert.ErrorIs(t, err, ledger.ErrOrderClosed)
	assert.Equal(t, int64(14000), l.Total())
}

func TestTotalInvariantUnderRandomOps(t *testing.T) {
	items := catalog.Default().Items()
	rng := rand.New(rand.NewSource(42))
	l := ledger.New(catalog.Default())

	for step := 0; step < 500; step++ {
		if rng.Intn(3) > 0 {
			it := items[rng.Intn(len(items))]
			_, err := l.Add(it.Name, 1+rng.Intn(3))
			require.NoError(t, err)
		} else {
			_, _ = l.Remove(rng.Intn(l.Len()+2))
		}
		snap := l.View()
		require.Equal(t, sum(snap.Items), snap.Total, "step %d", step)
		require.Equal(t, len(snap.Items) == 0, l.ExitAllowed())
	}
}

func TestExitAllowed(t *testing.T) {
	l := ledger.New(catalog.Default())
	assert.True(t, l.ExitAllowed())
	assert.False(t, l.Pending())

	_, err := l.Add("agua mineral", 1)
	require.NoError(t, err)
	assert.False(t, l.ExitAllowed())
	assert.True(t, l.Pending())

	_, err = l.Pay()
	require.NoError(t, err)
	assert.True(t, l.ExitAllowed())
}

func TestReceipt(t *testing.T) {
	l := ledger.New(catalog.Default())
	assert.Contains(t, l.View().Receipt(), "vacío")

	_, err := l.Add("rioja reserva", 2)
	require.NoError(t, err)
	receipt := l.View().Receipt()
	assert.Contains(t, receipt, "1. Rioja Reserva - $12.000")
	assert.Contains(t, receipt, "2. Rioja Reserva - $12.000")
	assert.Contains(t, receipt, "Total a pagar: $24.000")
}
