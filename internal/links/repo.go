package links

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/blueoakmerch/merchops-backend/pkg/db/models"
	"github.com/blueoakmerch/merchops-backend/pkg/enums"
	"github.com/blueoakmerch/merchops-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a link repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, link *models.OrderLink) (*models.OrderLink, error) {
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if link.LinkedAt.IsZero() {
		link.LinkedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		return nil, err
	}
	return link, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.OrderLink, error) {
	var link models.OrderLink
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *repository) FindLiveByProviderOrder(ctx context.Context, providerOrderID int64) (*models.OrderLink, error) {
	var link models.OrderLink
	err := r.db.WithContext(ctx).
		Where("provider_order_id = ? AND link_status IN ?", providerOrderID, liveStatuses).
		First(&link).Error
	if err != nil {
		return nil, err
	}
	return &link, nil
}

func (r *repository) ListByStorefrontOrder(ctx context.Context, storefrontOrderID int64) ([]models.OrderLink, error) {
	var links []models.OrderLink
	err := r.db.WithContext(ctx).
		Where("storefront_order_id = ?", storefrontOrderID).
		Order("created_at ASC, id ASC").
		Find(&links).Error
	if err != nil {
		return nil, err
	}
	return links, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.OrderLink{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// mappingScanRow is the flat shape produced by the mapping list join.
type mappingScanRow struct {
	LinkID          uuid.UUID
	ProviderOrderID int64
	LinkType        enums.LinkType
	LinkStatus      enums.LinkStatus
	Classification  enums.LinkClassification
	Confidence      *decimal.Decimal
	LinkedBy        *string
	Notes           *string
	LinkedAt        time.Time

	PoID            *int64
	PoExternalID    *string
	PoRecipientName *string
	PoTotalAmount   *decimal.Decimal
	PoCurrency      *string
	PoCreatedAt     *time.Time

	SoID           *int64
	SoOrderNumber  *string
	SoCustomerName *string
	SoTotalAmount  *decimal.Decimal
	SoCurrency     *string
	SoPlacedAt     *time.Time
}

func (r *repository) ListMappings(ctx context.Context, filters MappingFilters, params pagination.Params) ([]MappingRow, int64, error) {
	params = pagination.Normalize(params)

	base := r.db.WithContext(ctx).
		Table("order_links").
		Joins("LEFT JOIN provider_orders ON provider_orders.id = order_links.provider_order_id").
		Joins("LEFT JOIN storefront_orders ON storefront_orders.id = order_links.storefront_order_id")

	if filters.Classification != nil {
		base = base.Where("order_links.classification = ?", *filters.Classification)
	}
	if len(filters.Statuses) > 0 {
		base = base.Where("order_links.link_status IN ?", filters.Statuses)
	}
	if q := strings.TrimSpace(filters.Query); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		base = base.Where(
			"LOWER(COALESCE(provider_orders.external_id, '')) LIKE ? OR LOWER(COALESCE(provider_orders.recipient_name, '')) LIKE ? OR LOWER(COALESCE(storefront_orders.order_number, '')) LIKE ? OR LOWER(COALESCE(storefront_orders.customer_name, '')) LIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}
	if filters.DateFrom != nil {
		base = base.Where("order_links.linked_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		base = base.Where("order_links.linked_at <= ?", *filters.DateTo)
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var scanned []mappingScanRow
	err := base.Session(&gorm.Session{}).
		Select(`
			order_links.id AS link_id,
			order_links.provider_order_id,
			order_links.link_type,
			order_links.link_status,
			order_links.classification,
			order_links.confidence,
			order_links.linked_by,
			order_links.notes,
			order_links.linked_at,
			provider_orders.id AS po_id,
			provider_orders.external_id AS po_external_id,
			provider_orders.recipient_name AS po_recipient_name,
			provider_orders.total_amount AS po_total_amount,
			provider_orders.currency AS po_currency,
			provider_orders.provider_created_at AS po_created_at,
			storefront_orders.id AS so_id,
			storefront_orders.order_number AS so_order_number,
			storefront_orders.customer_name AS so_customer_name,
			storefront_orders.total_amount AS so_total_amount,
			storefront_orders.currency AS so_currency,
			storefront_orders.placed_at AS so_placed_at`).
		Order("order_links.linked_at DESC, order_links.id DESC").
		Limit(params.Limit).
		Offset(params.Offset).
		Scan(&scanned).Error
	if err != nil {
		return nil, 0, err
	}

	rows := make([]MappingRow, 0, len(scanned))
	for _, s := range scanned {
		rows = append(rows, s.toMappingRow())
	}
	return rows, total, nil
}

func (s mappingScanRow) toMappingRow() MappingRow {
	row := MappingRow{
		LinkID:          s.LinkID,
		ProviderOrderID: s.ProviderOrderID,
		LinkType:        s.LinkType,
		LinkStatus:      s.LinkStatus,
		Classification:  s.Classification,
		Confidence:      s.Confidence,
		LinkedBy:        s.LinkedBy,
		Notes:           s.Notes,
		LinkedAt:        s.LinkedAt,
	}
	if s.PoID != nil {
		row.ProviderOrder = &ProviderOrderSummary{
			ID:            *s.PoID,
			ExternalID:    s.PoExternalID,
			RecipientName: deref(s.PoRecipientName),
			TotalAmount:   derefDecimal(s.PoTotalAmount),
			Currency:      deref(s.PoCurrency),
			CreatedAt:     derefTime(s.PoCreatedAt),
		}
	}
	if s.SoID != nil {
		row.StorefrontOrder = &StorefrontOrderSummary{
			ID:           *s.SoID,
			OrderNumber:  deref(s.SoOrderNumber),
			CustomerName: deref(s.SoCustomerName),
			TotalAmount:  derefDecimal(s.SoTotalAmount),
			Currency:     deref(s.SoCurrency),
			PlacedAt:     derefTime(s.SoPlacedAt),
		}
	}
	return row
}

func (r *repository) Stats(ctx context.Context) (*Stats, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.ProviderOrder{}).Count(&total).Error; err != nil {
		return nil, err
	}

	var mapped int64
	err := r.db.WithContext(ctx).
		Model(&models.OrderLink{}).
		Distinct("provider_order_id").
		Where("link_status = ?", enums.LinkStatusActive).
		Count(&mapped).Error
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		TotalProviderOrders: total,
		MappedOrders:        mapped,
		UnmappedOrders:      total - mapped,
	}
	if total > 0 {
		stats.MappingPercentage = float64(mapped) / float64(total) * 100
	}
	return stats, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefDecimal(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
