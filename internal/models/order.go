package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentState is the payment lifecycle position recorded on an order.
type PaymentState string

const (
	PaymentStateInitialized PaymentState = "initialized"
	PaymentStateAuthorized  PaymentState = "authorized"
	PaymentStateCaptured    PaymentState = "captured"
	PaymentStateCancelled   PaymentState = "cancelled"
	PaymentStateRefunded    PaymentState = "refunded"
)

// Order maps to the `orders` table.
// Total is stored in major currency units.
type Order struct {
	ID               uint              `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	CartNumber       string            `gorm:"column:cart_number;size:100;uniqueIndex" json:"cart_number"`
	StoreID          uint              `gorm:"column:store_id;index" json:"store_id"`
	CurrencyID       uint              `gorm:"column:currency_id" json:"currency_id"`
	BillingCountryID uint              `gorm:"column:billing_country_id" json:"billing_country_id"`
	Total            decimal.Decimal   `gorm:"column:total;type:decimal(18,2)" json:"total"`
	PaymentProvider  string            `gorm:"column:payment_provider;size:100" json:"payment_provider"`
	PaymentState     PaymentState      `gorm:"column:payment_state;size:20;index" json:"payment_state"`
	TransactionID    string            `gorm:"column:transaction_id;size:255;index" json:"transaction_id"`
	Properties       map[string]string `gorm:"column:properties;serializer:json;type:text" json:"properties"`
	Version          int64             `gorm:"column:version;not null;default:1" json:"version"`
	PolledAt         *time.Time        `gorm:"column:polled_at;index" json:"polled_at,omitempty"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// Property returns an order property, reporting whether it was set.
func (o *Order) Property(alias string) (string, bool) {
	if o == nil || o.Properties == nil || alias == "" {
		return "", false
	}
	v, ok := o.Properties[alias]
	return v, ok
}

// SetProperty stores an order property, allocating the map when needed.
func (o *Order) SetProperty(alias, value string) {
	if o.Properties == nil {
		o.Properties = make(map[string]string)
	}
	o.Properties[alias] = value
}
