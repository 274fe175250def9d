package orderstore

import (
	"context"
	"time"

	"github.com/blueoakmerch/merchops-backend/pkg/db/models"
	"github.com/blueoakmerch/merchops-backend/pkg/pagination"
)

// Repository defines read-only access to the synchronized order tables. The
// reconciliation engine never writes here; ingestion owns both tables.
type Repository interface {
	FindProviderOrder(ctx context.Context, id int64) (*models.ProviderOrder, error)
	FindStorefrontOrder(ctx context.Context, id int64) (*models.StorefrontOrder, error)
	CountProviderOrders(ctx context.Context) (int64, error)
	// ListUnlinkedProviderOrders returns provider orders with no live link
	// (active or pending_verification), oldest first, plus the total count of
	// such orders.
	ListUnlinkedProviderOrders(ctx context.Context, params pagination.Params) ([]models.ProviderOrder, int64, error)
	// ListStorefrontOrdersAround returns storefront orders placed within the
	// window around the given instant. The window bounds the candidate search
	// space; it does not itself gate a match.
	ListStorefrontOrdersAround(ctx context.Context, at time.Time, window time.Duration) ([]models.StorefrontOrder, error)
	SearchProviderOrders(ctx context.Context, term string, limit int) ([]models.ProviderOrder, error)
}
