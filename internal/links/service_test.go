package links

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/blueoakmerch/merchops-backend/pkg/db/models"
	"github.com/blueoakmerch/merchops-backend/pkg/enums"
	pkgerrors "github.com/blueoakmerch/merchops-backend/pkg/errors"
	"github.com/blueoakmerch/merchops-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubLinksRepo struct {
	links        map[uuid.UUID]*models.OrderLink
	updates      map[uuid.UUID]map[string]any
	create       func(ctx context.Context, link *models.OrderLink) (*models.OrderLink, error)
	update       func(ctx context.Context, id uuid.UUID, updates map[string]any) error
	listMappings func(ctx context.Context, filters MappingFilters, params pagination.Params) ([]MappingRow, int64, error)
	stats        func(ctx context.Context) (*Stats, error)
}

func (s *stubLinksRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubLinksRepo) Create(ctx context.Context, link *models.OrderLink) (*models.OrderLink, error) {
	if s.create != nil {
		return s.create(ctx, link)
	}
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if s.links == nil {
		s.links = make(map[uuid.UUID]*models.OrderLink)
	}
	s.links[link.ID] = link
	return link, nil
}

func (s *stubLinksRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.OrderLink, error) {
	if link, ok := s.links[id]; ok {
		copied := *link
		return &copied, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubLinksRepo) FindLiveByProviderOrder(ctx context.Context, providerOrderID int64) (*models.OrderLink, error) {
	for _, link := range s.links {
		if link.ProviderOrderID == providerOrderID && link.LinkStatus.IsLive() {
			copied := *link
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubLinksRepo) ListByStorefrontOrder(ctx context.Context, storefrontOrderID int64) ([]models.OrderLink, error) {
	var out []models.OrderLink
	for _, link := range s.links {
		if link.StorefrontOrderID != nil && *link.StorefrontOrderID == storefrontOrderID {
			out = append(out, *link)
		}
	}
	return out, nil
}

func (s *stubLinksRepo) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if s.update != nil {
		return s.update(ctx, id, updates)
	}
	link, ok := s.links[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if s.updates == nil {
		s.updates = make(map[uuid.UUID]map[string]any)
	}
	s.updates[id] = updates
	if status, ok := updates["link_status"].(enums.LinkStatus); ok {
		link.LinkStatus = status
	}
	if storefrontID, ok := updates["storefront_order_id"].(int64); ok {
		link.StorefrontOrderID = &storefrontID
	}
	return nil
}

func (s *stubLinksRepo) ListMappings(ctx context.Context, filters MappingFilters, params pagination.Params) ([]MappingRow, int64, error) {
	if s.listMappings != nil {
		return s.listMappings(ctx, filters, params)
	}
	return nil, 0, nil
}

func (s *stubLinksRepo) Stats(ctx context.Context) (*Stats, error) {
	if s.stats != nil {
		return s.stats(ctx)
	}
	return &Stats{}, nil
}

type stubOrderStore struct {
	providerOrders   map[int64]*models.ProviderOrder
	storefrontOrders map[int64]*models.StorefrontOrder
}

func (s *stubOrderStore) FindProviderOrder(ctx context.Context, id int64) (*models.ProviderOrder, error) {
	if order, ok := s.providerOrders[id]; ok {
		return order, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderStore) FindStorefrontOrder(ctx context.Context, id int64) (*models.StorefrontOrder, error) {
	if order, ok := s.storefrontOrders[id]; ok {
		return order, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrderStore) CountProviderOrders(ctx context.Context) (int64, error) {
	return int64(len(s.providerOrders)), nil
}

func (s *stubOrderStore) ListUnlinkedProviderOrders(ctx context.Context, params pagination.Params) ([]models.ProviderOrder, int64, error) {
	return nil, 0, nil
}

func (s *stubOrderStore) ListStorefrontOrdersAround(ctx context.Context, at time.Time, window time.Duration) ([]models.StorefrontOrder, error) {
	return nil, nil
}

func (s *stubOrderStore) SearchProviderOrders(ctx context.Context, term string, limit int) ([]models.ProviderOrder, error) {
	return nil, nil
}

func newTestOrderStore() *stubOrderStore {
	return &stubOrderStore{
		providerOrders: map[int64]*models.ProviderOrder{
			1: {ID: 1, RecipientName: "Jane Doe"},
		},
		storefrontOrders: map[int64]*models.StorefrontOrder{
			10: {ID: 10, OrderNumber: "#1001", CustomerName: "Jane Doe"},
		},
	}
}

func newTestService(t *testing.T, repo *stubLinksRepo, orders *stubOrderStore) Service {
	t.Helper()

	svc, err := NewService(repo, orders, nil)
	require.NoError(t, err)
	return svc
}

func int64Ptr(v int64) *int64 {
	return &v
}

func TestServiceCreate_normalLink(t *testing.T) {
	repo := &stubLinksRepo{}
	svc := newTestService(t, repo, newTestOrderStore())

	link, err := svc.Create(context.Background(), CreateLinkInput{
		ProviderOrderID:   1,
		StorefrontOrderID: int64Ptr(10),
		Classification:    enums.LinkClassificationNormal,
		LinkType:          enums.LinkTypeManualUserOverride,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.LinkStatusActive, link.LinkStatus)
	assert.NotEqual(t, uuid.Nil, link.ID)
	assert.False(t, link.LinkedAt.IsZero())
}

func TestServiceCreate_normalRequiresStorefront(t *testing.T) {
	svc := newTestService(t, &stubLinksRepo{}, newTestOrderStore())

	_, err := svc.Create(context.Background(), CreateLinkInput{
		ProviderOrderID: 1,
		Classification:  enums.LinkClassificationNormal,
		LinkType:        enums.LinkTypeManualUserOverride,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestServiceCreate_classifiedRejectsStorefront(t *testing.T) {
	svc := newTestService(t, &stubLinksRepo{}, newTestOrderStore())

	for _, classification := range []enums.LinkClassification{
		enums.LinkClassificationCorrective,
		enums.LinkClassificationGift,
	} {
		_, err := svc.Create(context.Background(), CreateLinkInput{
			ProviderOrderID:   1,
			StorefrontOrderID: int64Ptr(10),
			Classification:    classification,
			LinkType:          enums.LinkTypeManualUserOverride,
		})
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "classification %s", classification)
	}
}

func TestServiceCreate_classifiedForcesActive(t *testing.T) {
	repo := &stubLinksRepo{}
	svc := newTestService(t, repo, newTestOrderStore())

	link, err := svc.Create(context.Background(), CreateLinkInput{
		ProviderOrderID: 1,
		Classification:  enums.LinkClassificationGift,
		LinkType:        enums.LinkTypeManualUserOverride,
		Status:          enums.LinkStatusPendingVerification,
	})
	require.NoError(t, err)
	assert.Equal(t, enums.LinkStatusActive, link.LinkStatus)
	assert.Nil(t, link.StorefrontOrderID)
}

func TestServiceCreate_missingOrders(t *testing.T) {
	svc := newTestService(t, &stubLinksRepo{}, newTestOrderStore())

	_, err := svc.Create(context.Background(), CreateLinkInput{
		ProviderOrderID:   99,
		StorefrontOrderID: int64Ptr(10),
		Classification:    enums.LinkClassificationNormal,
		LinkType:          enums.LinkTypeManualUserOverride,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.Create(context.Background(), CreateLinkInput{
		ProviderOrderID:   1,
		StorefrontOrderID: int64Ptr(99),
		Classification:    enums.LinkClassificationNormal,
		LinkType:          enums.LinkTypeManualUserOverride,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestServiceCreate_duplicateLiveLink(t *testing.T) {
	existingID := uuid.New()
	repo := &stubLinksRepo{
		links: map[uuid.UUID]*models.OrderLink{
			existingID: {
				ID:                existingID,
				ProviderOrderID:   1,
				StorefrontOrderID: int64Ptr(10),
				LinkStatus:        enums.LinkStatusActive,
				Classification:    enums.LinkClassificationNormal,
			},
		},
		create: func(ctx context.Context, link *models.OrderLink) (*models.OrderLink, error) {
			return nil, errors.New("UNIQUE constraint failed: order_links.provider_order_id")
		},
	}
	svc := newTestService(t, repo, newTestOrderStore())

	_, err := svc.Create(context.Background(), CreateLinkInput{
		ProviderOrderID:   1,
		StorefrontOrderID: int64Ptr(10),
		Classification:    enums.LinkClassificationNormal,
		LinkType:          enums.LinkTypeAutomatic,
		Status:            enums.LinkStatusPendingVerification,
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, existingID.String(), details["existing_link_id"])
	assert.Equal(t, enums.LinkStatusActive, details["existing_link_status"])
}

func TestServiceCorrect_reassignsTarget(t *testing.T) {
	linkID := uuid.New()
	repo := &stubLinksRepo{
		links: map[uuid.UUID]*models.OrderLink{
			linkID: {
				ID:                linkID,
				ProviderOrderID:   1,
				StorefrontOrderID: int64Ptr(10),
				LinkType:          enums.LinkTypeAutomatic,
				LinkStatus:        enums.LinkStatusPendingVerification,
				Classification:    enums.LinkClassificationNormal,
			},
		},
	}
	orders := newTestOrderStore()
	orders.storefrontOrders[11] = &models.StorefrontOrder{ID: 11, OrderNumber: "#1002"}
	svc := newTestService(t, repo, orders)

	corrected, err := svc.Correct(context.Background(), CorrectLinkInput{
		LinkID:               linkID,
		NewStorefrontOrderID: int64Ptr(11),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.LinkStatusActive, corrected.LinkStatus)
	require.NotNil(t, corrected.StorefrontOrderID)
	assert.Equal(t, int64(11), *corrected.StorefrontOrderID)
}

func TestServiceCorrect_archivedIsTerminal(t *testing.T) {
	linkID := uuid.New()
	repo := &stubLinksRepo{
		links: map[uuid.UUID]*models.OrderLink{
			linkID: {
				ID:             linkID,
				LinkStatus:     enums.LinkStatusArchived,
				Classification: enums.LinkClassificationNormal,
			},
		},
	}
	svc := newTestService(t, repo, newTestOrderStore())

	_, err := svc.Correct(context.Background(), CorrectLinkInput{
		LinkID:               linkID,
		NewStorefrontOrderID: int64Ptr(10),
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestServiceCorrect_brokenNeedsNewTarget(t *testing.T) {
	linkID := uuid.New()
	repo := &stubLinksRepo{
		links: map[uuid.UUID]*models.OrderLink{
			linkID: {
				ID:              linkID,
				ProviderOrderID: 1,
				LinkStatus:      enums.LinkStatusBrokenStorefrontDeleted,
				Classification:  enums.LinkClassificationNormal,
			},
		},
	}
	svc := newTestService(t, repo, newTestOrderStore())

	_, err := svc.Correct(context.Background(), CorrectLinkInput{LinkID: linkID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	corrected, err := svc.Correct(context.Background(), CorrectLinkInput{
		LinkID:               linkID,
		NewStorefrontOrderID: int64Ptr(10),
	})
	require.NoError(t, err)
	assert.Equal(t, enums.LinkStatusActive, corrected.LinkStatus)
}

func TestServiceCorrect_notFound(t *testing.T) {
	svc := newTestService(t, &stubLinksRepo{}, newTestOrderStore())

	_, err := svc.Correct(context.Background(), CorrectLinkInput{LinkID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestServiceRemove_archivesActiveLink(t *testing.T) {
	linkID := uuid.New()
	repo := &stubLinksRepo{
		links: map[uuid.UUID]*models.OrderLink{
			linkID: {
				ID:             linkID,
				LinkStatus:     enums.LinkStatusActive,
				Classification: enums.LinkClassificationNormal,
			},
		},
	}
	svc := newTestService(t, repo, newTestOrderStore())

	require.NoError(t, svc.Remove(context.Background(), linkID))
	assert.Equal(t, enums.LinkStatusArchived, repo.links[linkID].LinkStatus)
}

func TestServiceRemove_idempotentOnArchived(t *testing.T) {
	linkID := uuid.New()
	repo := &stubLinksRepo{
		links: map[uuid.UUID]*models.OrderLink{
			linkID: {ID: linkID, LinkStatus: enums.LinkStatusArchived},
		},
		update: func(ctx context.Context, id uuid.UUID, updates map[string]any) error {
			t.Fatal("archived removal must not touch the row")
			return nil
		},
	}
	svc := newTestService(t, repo, newTestOrderStore())

	assert.NoError(t, svc.Remove(context.Background(), linkID))
}

func TestServiceRemove_brokenIsTerminal(t *testing.T) {
	linkID := uuid.New()
	repo := &stubLinksRepo{
		links: map[uuid.UUID]*models.OrderLink{
			linkID: {ID: linkID, LinkStatus: enums.LinkStatusBrokenProviderDeleted},
		},
	}
	svc := newTestService(t, repo, newTestOrderStore())

	err := svc.Remove(context.Background(), linkID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestServiceListMappings_demotesDanglingReferences(t *testing.T) {
	danglingProvider := uuid.New()
	danglingStorefront := uuid.New()
	giftLink := uuid.New()
	repo := &stubLinksRepo{
		links: map[uuid.UUID]*models.OrderLink{
			danglingProvider:   {ID: danglingProvider, LinkStatus: enums.LinkStatusActive},
			danglingStorefront: {ID: danglingStorefront, LinkStatus: enums.LinkStatusActive},
			giftLink:           {ID: giftLink, LinkStatus: enums.LinkStatusActive},
		},
		listMappings: func(ctx context.Context, filters MappingFilters, params pagination.Params) ([]MappingRow, int64, error) {
			return []MappingRow{
				{
					LinkID:          danglingProvider,
					LinkStatus:      enums.LinkStatusActive,
					Classification:  enums.LinkClassificationNormal,
					StorefrontOrder: &StorefrontOrderSummary{ID: 10},
				},
				{
					LinkID:         danglingStorefront,
					LinkStatus:     enums.LinkStatusActive,
					Classification: enums.LinkClassificationNormal,
					ProviderOrder:  &ProviderOrderSummary{ID: 1},
				},
				{
					LinkID:         giftLink,
					LinkStatus:     enums.LinkStatusActive,
					Classification: enums.LinkClassificationGift,
					ProviderOrder:  &ProviderOrderSummary{ID: 2},
				},
			}, 3, nil
		},
		stats: func(ctx context.Context) (*Stats, error) {
			return &Stats{TotalProviderOrders: 3, MappedOrders: 1, UnmappedOrders: 2}, nil
		},
	}
	svc := newTestService(t, repo, newTestOrderStore())

	list, err := svc.ListMappings(context.Background(), MappingFilters{}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, list.Mappings, 3)

	assert.Equal(t, enums.LinkStatusBrokenProviderDeleted, list.Mappings[0].LinkStatus)
	assert.Equal(t, enums.LinkStatusBrokenStorefrontDeleted, list.Mappings[1].LinkStatus)
	// gift links have no storefront side to go missing
	assert.Equal(t, enums.LinkStatusActive, list.Mappings[2].LinkStatus)

	assert.Equal(t, enums.LinkStatusBrokenProviderDeleted, repo.links[danglingProvider].LinkStatus)
	assert.Equal(t, enums.LinkStatusBrokenStorefrontDeleted, repo.links[danglingStorefront].LinkStatus)
	assert.Equal(t, enums.LinkStatusActive, repo.links[giftLink].LinkStatus)
	assert.Equal(t, int64(3), list.TotalCount)
	assert.Equal(t, int64(3), list.Stats.TotalProviderOrders)
}

func TestServiceLinksForStorefrontOrder(t *testing.T) {
	linkID := uuid.New()
	repo := &stubLinksRepo{
		links: map[uuid.UUID]*models.OrderLink{
			linkID: {
				ID:                linkID,
				ProviderOrderID:   1,
				StorefrontOrderID: int64Ptr(10),
				LinkStatus:        enums.LinkStatusActive,
				Classification:    enums.LinkClassificationNormal,
			},
		},
	}
	svc := newTestService(t, repo, newTestOrderStore())

	found, err := svc.LinksForStorefrontOrder(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, linkID, found[0].ID)

	none, err := svc.LinksForStorefrontOrder(context.Background(), 999)
	require.NoError(t, err)
	assert.Empty(t, none)
}
