package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProviderOrder is a synchronized copy of an order recorded by the external
// print-fulfillment provider. The reconciliation engine never mutates these
// rows; ingestion owns them.
type ProviderOrder struct {
	ID                int64               `gorm:"column:id;primaryKey;autoIncrement"`
	ExternalID        *string             `gorm:"column:external_id"`
	RecipientName     string              `gorm:"column:recipient_name;not null"`
	TotalAmount       decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency          string              `gorm:"column:currency;not null;default:'USD'"`
	Status            string              `gorm:"column:status;not null"`
	ProviderCreatedAt time.Time           `gorm:"column:provider_created_at;not null"`
	Items             []ProviderOrderItem `gorm:"foreignKey:ProviderOrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the default pluralization.
func (ProviderOrder) TableName() string {
	return "provider_orders"
}

// ProviderOrderItem is a line item on a provider order.
type ProviderOrderItem struct {
	ID              int64           `gorm:"column:id;primaryKey;autoIncrement"`
	ProviderOrderID int64           `gorm:"column:provider_order_id;not null;index"`
	Name            string          `gorm:"column:name;not null"`
	Variant         string          `gorm:"column:variant"`
	Quantity        int             `gorm:"column:quantity;not null"`
	UnitPrice       decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the default pluralization.
func (ProviderOrderItem) TableName() string {
	return "provider_order_items"
}
