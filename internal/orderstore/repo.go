package orderstore

import (
	"context"
	"strings"
	"time"

	"github.com/blueoakmerch/merchops-backend/pkg/db/models"
	"github.com/blueoakmerch/merchops-backend/pkg/pagination"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an order store repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

const liveLinkFilter = `NOT EXISTS (
	SELECT 1 FROM order_links
	WHERE order_links.provider_order_id = provider_orders.id
	  AND order_links.link_status IN ('active', 'pending_verification')
)`

func (r *repository) FindProviderOrder(ctx context.Context, id int64) (*models.ProviderOrder, error) {
	var order models.ProviderOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindStorefrontOrder(ctx context.Context, id int64) (*models.StorefrontOrder, error) {
	var order models.StorefrontOrder
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) CountProviderOrders(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProviderOrder{}).
		Count(&count).Error
	return count, err
}

func (r *repository) ListUnlinkedProviderOrders(ctx context.Context, params pagination.Params) ([]models.ProviderOrder, int64, error) {
	params = pagination.Normalize(params)

	var total int64
	base := r.db.WithContext(ctx).
		Model(&models.ProviderOrder{}).
		Where(liveLinkFilter)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.ProviderOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where(liveLinkFilter).
		Order("provider_created_at ASC, id ASC").
		Limit(params.Limit).
		Offset(params.Offset).
		Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *repository) ListStorefrontOrdersAround(ctx context.Context, at time.Time, window time.Duration) ([]models.StorefrontOrder, error) {
	from := at.Add(-window)
	to := at.Add(window)

	var orders []models.StorefrontOrder
	err := r.db.WithContext(ctx).
		Where("placed_at >= ? AND placed_at <= ?", from, to).
		Order("placed_at ASC, id ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) SearchProviderOrders(ctx context.Context, term string, limit int) ([]models.ProviderOrder, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, nil
	}
	pattern := "%" + strings.ToLower(term) + "%"

	var orders []models.ProviderOrder
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("LOWER(COALESCE(external_id, '')) LIKE ? OR LOWER(recipient_name) LIKE ?", pattern, pattern).
		Order("provider_created_at DESC, id DESC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}
