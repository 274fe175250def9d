package links

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blueoakmerch/merchops-backend/pkg/db/models"
	"github.com/blueoakmerch/merchops-backend/pkg/enums"
	"github.com/blueoakmerch/merchops-backend/pkg/pagination"
)

// Repository defines persistence operations for order link rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Create inserts the link. The partial unique index on live links is the
	// atomic guard: a concurrent second live link for the same provider order
	// fails with a unique violation, which the service maps to a conflict.
	Create(ctx context.Context, link *models.OrderLink) (*models.OrderLink, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.OrderLink, error)
	FindLiveByProviderOrder(ctx context.Context, providerOrderID int64) (*models.OrderLink, error)
	ListByStorefrontOrder(ctx context.Context, storefrontOrderID int64) ([]models.OrderLink, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListMappings(ctx context.Context, filters MappingFilters, params pagination.Params) ([]MappingRow, int64, error)
	Stats(ctx context.Context) (*Stats, error)
}

// liveStatuses are the statuses counted by the one-live-link guard.
var liveStatuses = []enums.LinkStatus{
	enums.LinkStatusActive,
	enums.LinkStatusPendingVerification,
}
