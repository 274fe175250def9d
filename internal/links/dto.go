package links

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/blueoakmerch/merchops-backend/pkg/enums"
)

// CreateLinkInput captures everything needed to create an order link.
type CreateLinkInput struct {
	ProviderOrderID   int64
	StorefrontOrderID *int64
	Classification    enums.LinkClassification
	LinkType          enums.LinkType
	// Status must be active or pending_verification. Manual links start
	// active; the auto-mapper picks based on confidence.
	Status     enums.LinkStatus
	Confidence *decimal.Decimal
	LinkedBy   *string
	Notes      *string
}

// CorrectLinkInput reassigns a link's storefront target and/or confirms it.
type CorrectLinkInput struct {
	LinkID               uuid.UUID
	NewStorefrontOrderID *int64
	Notes                *string
	CorrectedBy          *string
}

// MappingFilters describe the inputs supported by the mapping list.
type MappingFilters struct {
	Classification *enums.LinkClassification
	Statuses       []enums.LinkStatus
	Query          string
	DateFrom       *time.Time
	DateTo         *time.Time
}

// ProviderOrderSummary is the provider side of a mapping row.
type ProviderOrderSummary struct {
	ID            int64           `json:"id"`
	ExternalID    *string         `json:"external_id,omitempty"`
	RecipientName string          `json:"recipient_name"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency"`
	CreatedAt     time.Time       `json:"created_at"`
}

// StorefrontOrderSummary is the storefront side of a mapping row.
type StorefrontOrderSummary struct {
	ID           int64           `json:"id"`
	OrderNumber  string          `json:"order_number"`
	CustomerName string          `json:"customer_name"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Currency     string          `json:"currency"`
	PlacedAt     time.Time       `json:"placed_at"`
}

// MappingRow is one link joined with its order summaries. Either summary may
// be nil when the referenced order has vanished from the order store.
type MappingRow struct {
	LinkID          uuid.UUID                `json:"link_id"`
	ProviderOrderID int64                    `json:"provider_order_id"`
	LinkType        enums.LinkType           `json:"link_type"`
	LinkStatus      enums.LinkStatus         `json:"link_status"`
	Classification  enums.LinkClassification `json:"classification"`
	Confidence      *decimal.Decimal         `json:"confidence,omitempty"`
	LinkedBy        *string                  `json:"linked_by,omitempty"`
	Notes           *string                  `json:"notes,omitempty"`
	LinkedAt        time.Time                `json:"linked_at"`
	ProviderOrder   *ProviderOrderSummary    `json:"provider_order,omitempty"`
	StorefrontOrder *StorefrontOrderSummary  `json:"storefront_order,omitempty"`
}

// Stats is the derived reporting snapshot; never stored, recomputed per
// request from the current link rows.
type Stats struct {
	TotalProviderOrders int64   `json:"total_provider_orders"`
	MappedOrders        int64   `json:"mapped_orders"`
	UnmappedOrders      int64   `json:"unmapped_orders"`
	MappingPercentage   float64 `json:"mapping_percentage"`
}

// MappingList wraps the filtered mapping rows plus the overall stats.
type MappingList struct {
	Mappings   []MappingRow `json:"mappings"`
	TotalCount int64        `json:"total_count"`
	Stats      Stats        `json:"stats"`
}
