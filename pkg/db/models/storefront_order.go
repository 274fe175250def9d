package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// StorefrontOrder is a synchronized copy of an order recorded by the
// independent commerce/checkout system. Read-only from the engine's side.
type StorefrontOrder struct {
	ID                int64           `gorm:"column:id;primaryKey;autoIncrement"`
	OrderNumber       string          `gorm:"column:order_number;not null"`
	CustomerName      string          `gorm:"column:customer_name;not null"`
	CustomerEmail     string          `gorm:"column:customer_email"`
	TotalAmount       decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency          string          `gorm:"column:currency;not null;default:'USD'"`
	PaymentStatus     string          `gorm:"column:payment_status;not null"`
	FulfillmentStatus string          `gorm:"column:fulfillment_status;not null"`
	PlacedAt          time.Time       `gorm:"column:placed_at;not null"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the default pluralization.
func (StorefrontOrder) TableName() string {
	return "storefront_orders"
}
