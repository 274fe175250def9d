package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/blueoakmerch/merchops-backend/pkg/enums"
)

// OrderLink is the reconciliation record asserting that a provider order
// corresponds (or deliberately does not correspond) to a storefront order.
// Rows are never deleted; superseded links remain as archived history.
type OrderLink struct {
	ID                uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProviderOrderID   int64                    `gorm:"column:provider_order_id;not null;index"`
	StorefrontOrderID *int64                   `gorm:"column:storefront_order_id;index"`
	LinkType          enums.LinkType           `gorm:"column:link_type;type:link_type;not null"`
	LinkStatus        enums.LinkStatus         `gorm:"column:link_status;type:link_status;not null"`
	Classification    enums.LinkClassification `gorm:"column:classification;type:link_classification;not null;default:'normal'"`
	Confidence        *decimal.Decimal         `gorm:"column:confidence;type:numeric(4,3)"`
	LinkedBy          *string                  `gorm:"column:linked_by"`
	Notes             *string                  `gorm:"column:notes"`
	LinkedAt          time.Time                `gorm:"column:linked_at;not null"`
	CreatedAt         time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName overrides the default pluralization.
func (OrderLink) TableName() string {
	return "order_links"
}
