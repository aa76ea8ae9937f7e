package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"paysync/internal/models"
)

// OrderRepository persists orders with optimistic versioning.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a new order at version 1.
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	order.Version = 1
	if order.PaymentState == "" {
		order.PaymentState = models.PaymentStateInitialized
	}
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByID returns an order by primary key.
func (r *OrderRepository) FindByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// FindByCartNumber returns the order correlated with a cart number.
func (r *OrderRepository) FindByCartNumber(ctx context.Context, cartNumber string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("cart_number = ?", cartNumber).First(&order).Error; err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// Save commits the payment fields and properties of a loaded order.
// It fails with ErrConcurrentUpdate when the stored version moved on.
func (r *OrderRepository) Save(ctx context.Context, order *models.Order) error {
	if order.ID == 0 {
		return r.Create(ctx, order)
	}
	props, err := json.Marshal(order.Properties)
	if err != nil {
		return fmt.Errorf("encode properties: %w", err)
	}
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(map[string]interface{}{
			"transaction_id": order.TransactionID,
			"payment_state":  order.PaymentState,
			"properties":     string(props),
			"version":        gorm.Expr("version + 1"),
			"updated_at":     now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order %d at version %d: %w", order.ID, order.Version, ErrConcurrentUpdate)
	}
	order.Version++
	order.UpdatedAt = now
	return nil
}

// ListForReconciliation returns orders of the given providers holding a
// transaction id whose payment has not reached a settled state. Orders never
// polled come first, then the least recently polled.
func (r *OrderRepository) ListForReconciliation(ctx context.Context, providers []string, limit int) ([]models.Order, error) {
	if len(providers) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("payment_provider IN ? AND payment_state IN ? AND transaction_id <> ''", providers, []string{
			string(models.PaymentStateInitialized),
			string(models.PaymentStateAuthorized),
		}).
		Order("polled_at IS NOT NULL, polled_at ASC, id ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}

// MarkPolled records when the gateway was last asked about an order.
// It leaves the version alone so it never races payment state writes.
func (r *OrderRepository) MarkPolled(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		UpdateColumn("polled_at", at).Error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrOrderNotFound
	}
	return err
}
