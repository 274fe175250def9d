package links

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/blueoakmerch/merchops-backend/internal/orderstore"
	"github.com/blueoakmerch/merchops-backend/pkg/db"
	"github.com/blueoakmerch/merchops-backend/pkg/db/models"
	"github.com/blueoakmerch/merchops-backend/pkg/enums"
	pkgerrors "github.com/blueoakmerch/merchops-backend/pkg/errors"
	"github.com/blueoakmerch/merchops-backend/pkg/logger"
	"github.com/blueoakmerch/merchops-backend/pkg/pagination"
)

// liveLinkConstraint names the partial unique index guarding the
// one-live-link-per-provider-order invariant.
const liveLinkConstraint = "uq_order_links_live_provider"

// Service owns the link lifecycle: creation, correction, archival and the
// opportunistic demotion of links whose referenced orders have vanished.
type Service interface {
	Create(ctx context.Context, input CreateLinkInput) (*models.OrderLink, error)
	Correct(ctx context.Context, input CorrectLinkInput) (*models.OrderLink, error)
	Remove(ctx context.Context, linkID uuid.UUID) error
	LinksForStorefrontOrder(ctx context.Context, storefrontOrderID int64) ([]models.OrderLink, error)
	ListMappings(ctx context.Context, filters MappingFilters, params pagination.Params) (*MappingList, error)
	Stats(ctx context.Context) (*Stats, error)
}

type service struct {
	repo   Repository
	orders orderstore.Repository
	logg   *logger.Logger
}

// NewService builds a link service with the required dependencies. The logger
// may be nil; it is only used for best-effort paths.
func NewService(repo Repository, orders orderstore.Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("link repository required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order store repository required")
	}
	return &service{repo: repo, orders: orders, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input CreateLinkInput) (*models.OrderLink, error) {
	if input.ProviderOrderID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider order id required")
	}
	if !input.Classification.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid classification")
	}
	if !input.LinkType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid link type")
	}

	status := input.Status
	if status == "" {
		status = enums.LinkStatusActive
	}
	if !status.IsLive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "links start as active or pending_verification")
	}

	if input.Classification.RequiresStorefrontOrder() {
		if input.StorefrontOrderID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "normal links require a storefront order")
		}
	} else {
		if input.StorefrontOrderID != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "corrective and gift orders have no storefront counterpart").
				WithDetails(map[string]any{"classification": input.Classification})
		}
		// classified orders need no verification step
		status = enums.LinkStatusActive
	}

	if _, err := s.orders.FindProviderOrder(ctx, input.ProviderOrderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "provider order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load provider order")
	}
	if input.StorefrontOrderID != nil {
		if _, err := s.orders.FindStorefrontOrder(ctx, *input.StorefrontOrderID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "storefront order not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load storefront order")
		}
	}

	link := &models.OrderLink{
		ProviderOrderID:   input.ProviderOrderID,
		StorefrontOrderID: input.StorefrontOrderID,
		LinkType:          input.LinkType,
		LinkStatus:        status,
		Classification:    input.Classification,
		Confidence:        input.Confidence,
		LinkedBy:          input.LinkedBy,
		Notes:             input.Notes,
		LinkedAt:          time.Now().UTC(),
	}

	created, err := s.repo.Create(ctx, link)
	if err != nil {
		if db.IsUniqueViolation(err, liveLinkConstraint) {
			details := map[string]any{"provider_order_id": input.ProviderOrderID}
			if existing, findErr := s.repo.FindLiveByProviderOrder(ctx, input.ProviderOrderID); findErr == nil {
				details["existing_link_id"] = existing.ID.String()
				details["existing_link_status"] = existing.LinkStatus
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "provider order already has a live link").
				WithDetails(details)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order link")
	}
	return created, nil
}

func (s *service) Correct(ctx context.Context, input CorrectLinkInput) (*models.OrderLink, error) {
	if input.LinkID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "link id required")
	}

	link, err := s.repo.FindByID(ctx, input.LinkID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "link not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load link")
	}

	switch link.LinkStatus {
	case enums.LinkStatusActive, enums.LinkStatusPendingVerification, enums.LinkStatusBrokenStorefrontDeleted:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "link cannot be corrected in its current status").
			WithDetails(map[string]any{"link_status": link.LinkStatus})
	}

	if input.NewStorefrontOrderID != nil && !link.Classification.RequiresStorefrontOrder() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "classified links have no storefront target to correct")
	}
	if input.NewStorefrontOrderID == nil && link.LinkStatus == enums.LinkStatusBrokenStorefrontDeleted {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a broken link needs a new storefront order to reactivate")
	}

	updates := map[string]any{
		"link_status": enums.LinkStatusActive,
	}
	if input.NewStorefrontOrderID != nil {
		if _, err := s.orders.FindStorefrontOrder(ctx, *input.NewStorefrontOrderID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "storefront order not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load storefront order")
		}
		updates["storefront_order_id"] = *input.NewStorefrontOrderID
	}
	if input.Notes != nil {
		updates["notes"] = *input.Notes
	}
	if input.CorrectedBy != nil {
		updates["linked_by"] = *input.CorrectedBy
	}

	if err := s.repo.Update(ctx, link.ID, updates); err != nil {
		if db.IsUniqueViolation(err, liveLinkConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "provider order already has a live link")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update link")
	}

	updated, err := s.repo.FindByID(ctx, link.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload link")
	}
	return updated, nil
}

func (s *service) Remove(ctx context.Context, linkID uuid.UUID) error {
	if linkID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "link id required")
	}

	link, err := s.repo.FindByID(ctx, linkID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "link not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load link")
	}

	// already archived: removal is idempotent
	if link.LinkStatus == enums.LinkStatusArchived {
		return nil
	}
	if !link.LinkStatus.IsLive() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "broken links are terminal and cannot be removed").
			WithDetails(map[string]any{"link_status": link.LinkStatus})
	}

	if err := s.repo.Update(ctx, link.ID, map[string]any{"link_status": enums.LinkStatusArchived}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "archive link")
	}
	return nil
}

func (s *service) LinksForStorefrontOrder(ctx context.Context, storefrontOrderID int64) ([]models.OrderLink, error) {
	if storefrontOrderID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "storefront order id required")
	}
	links, err := s.repo.ListByStorefrontOrder(ctx, storefrontOrderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list links for storefront order")
	}
	return links, nil
}

func (s *service) ListMappings(ctx context.Context, filters MappingFilters, params pagination.Params) (*MappingList, error) {
	rows, total, err := s.repo.ListMappings(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list mappings")
	}

	for i := range rows {
		rows[i] = s.demoteIfBroken(ctx, rows[i])
	}

	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "compute stats")
	}

	return &MappingList{
		Mappings:   rows,
		TotalCount: total,
		Stats:      *stats,
	}, nil
}

// demoteIfBroken converts a dangling reference discovered during a read into
// the matching broken status. The read itself still succeeds; failures to
// persist the demotion are logged and otherwise ignored.
func (s *service) demoteIfBroken(ctx context.Context, row MappingRow) MappingRow {
	if !row.LinkStatus.IsLive() {
		return row
	}

	var broken enums.LinkStatus
	switch {
	case row.ProviderOrder == nil:
		broken = enums.LinkStatusBrokenProviderDeleted
	case row.Classification.RequiresStorefrontOrder() && row.StorefrontOrder == nil:
		broken = enums.LinkStatusBrokenStorefrontDeleted
	default:
		return row
	}

	if err := s.repo.Update(ctx, row.LinkID, map[string]any{"link_status": broken}); err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithLinkID(ctx, row.LinkID.String()), "failed to demote broken link", err)
		}
		return row
	}
	row.LinkStatus = broken
	return row
}

func (s *service) Stats(ctx context.Context) (*Stats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "compute stats")
	}
	return stats, nil
}
