package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paysync/internal/models"
)

func setupOrderTest(t *testing.T) *OrderRepository {
	db, err := NewTestConnection()
	require.NoError(t, err)
	return NewOrderRepository(db)
}

func newOrder(cart string) *models.Order {
	return &models.Order{
		CartNumber:      cart,
		StoreID:         1,
		CurrencyID:      1,
		Total:           decimal.RequireFromString("19.99"),
		PaymentProvider: "stripe",
	}
}

func TestOrderCreate_And_Find(t *testing.T) {
	repo := setupOrderTest(t)
	ctx := context.Background()

	order := newOrder("CART-1")
	order.SetProperty("email", "jo@example.com")
	require.NoError(t, repo.Create(ctx, order))
	assert.NotZero(t, order.ID)
	assert.Equal(t, int64(1), order.Version)
	assert.Equal(t, models.PaymentStateInitialized, order.PaymentState)

	byID, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "CART-1", byID.CartNumber)
	assert.True(t, byID.Total.Equal(decimal.RequireFromString("19.99")))
	email, ok := byID.Property("email")
	assert.True(t, ok)
	assert.Equal(t, "jo@example.com", email)

	byCart, err := repo.FindByCartNumber(ctx, "CART-1")
	require.NoError(t, err)
	assert.Equal(t, order.ID, byCart.ID)
}

func TestOrderFind_NotFound(t *testing.T) {
	repo := setupOrderTest(t)
	ctx := context.Background()

	_, err := repo.FindByID(ctx, 42)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = repo.FindByCartNumber(ctx, "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderSave_BumpsVersion(t *testing.T) {
	repo := setupOrderTest(t)
	ctx := context.Background()

	order := newOrder("CART-2")
	require.NoError(t, repo.Create(ctx, order))

	order.TransactionID = "ch_1"
	order.PaymentState = models.PaymentStateAuthorized
	order.SetProperty("stripeCustomerId", "cus_1")
	require.NoError(t, repo.Save(ctx, order))
	assert.Equal(t, int64(2), order.Version)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "ch_1", stored.TransactionID)
	assert.Equal(t, models.PaymentStateAuthorized, stored.PaymentState)
	assert.Equal(t, int64(2), stored.Version)
	cus, _ := stored.Property("stripeCustomerId")
	assert.Equal(t, "cus_1", cus)
}

func TestOrderSave_StaleVersion(t *testing.T) {
	repo := setupOrderTest(t)
	ctx := context.Background()

	order := newOrder("CART-3")
	require.NoError(t, repo.Create(ctx, order))

	first, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	second, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)

	first.PaymentState = models.PaymentStateAuthorized
	require.NoError(t, repo.Save(ctx, first))

	second.PaymentState = models.PaymentStateCaptured
	err = repo.Save(ctx, second)
	assert.ErrorIs(t, err, ErrConcurrentUpdate)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStateAuthorized, stored.PaymentState)
}

func TestOrderListForReconciliation(t *testing.T) {
	repo := setupOrderTest(t)
	ctx := context.Background()

	pending := newOrder("CART-A")
	pending.TransactionID = "ch_a"
	require.NoError(t, repo.Create(ctx, pending))

	authorized := newOrder("CART-B")
	authorized.TransactionID = "ch_b"
	authorized.PaymentState = models.PaymentStateAuthorized
	require.NoError(t, repo.Create(ctx, authorized))

	noTxn := newOrder("CART-C")
	require.NoError(t, repo.Create(ctx, noTxn))

	captured := newOrder("CART-D")
	captured.TransactionID = "ch_d"
	captured.PaymentState = models.PaymentStateCaptured
	require.NoError(t, repo.Create(ctx, captured))

	other := newOrder("CART-E")
	other.TransactionID = "sub_e"
	other.PaymentProvider = "stripe-subscription"
	require.NoError(t, repo.Create(ctx, other))

	orders, err := repo.ListForReconciliation(ctx, []string{"stripe"}, 10)
	require.NoError(t, err)

	carts := make([]string, 0, len(orders))
	for _, o := range orders {
		carts = append(carts, o.CartNumber)
	}
	assert.ElementsMatch(t, []string{"CART-A", "CART-B"}, carts)

	limited, err := repo.ListForReconciliation(ctx, []string{"stripe"}, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := repo.ListForReconciliation(ctx, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOrderListForReconciliation_RotatesByPolledAt(t *testing.T) {
	repo := setupOrderTest(t)
	ctx := context.Background()

	older := newOrder("CART-OLD")
	older.TransactionID = "ch_old"
	older.PaymentState = models.PaymentStateAuthorized
	require.NoError(t, repo.Create(ctx, older))

	newer := newOrder("CART-NEW")
	newer.TransactionID = "ch_new"
	require.NoError(t, repo.Create(ctx, newer))

	first, err := repo.ListForReconciliation(ctx, []string{"stripe"}, 1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, "CART-OLD", first[0].CartNumber)

	require.NoError(t, repo.MarkPolled(ctx, older.ID, time.Now()))

	second, err := repo.ListForReconciliation(ctx, []string{"stripe"}, 1)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, "CART-NEW", second[0].CartNumber)

	stored, err := repo.FindByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Version)
	assert.NotNil(t, stored.PolledAt)
}
