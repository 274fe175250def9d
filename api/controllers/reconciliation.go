package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/blueoakmerch/merchops-backend/api/responses"
	"github.com/blueoakmerch/merchops-backend/api/validators"
	"github.com/blueoakmerch/merchops-backend/internal/automap"
	"github.com/blueoakmerch/merchops-backend/internal/links"
	"github.com/blueoakmerch/merchops-backend/internal/orderstore"
	"github.com/blueoakmerch/merchops-backend/pkg/config"
	"github.com/blueoakmerch/merchops-backend/pkg/enums"
	pkgerrors "github.com/blueoakmerch/merchops-backend/pkg/errors"
	"github.com/blueoakmerch/merchops-backend/pkg/logger"
	"github.com/blueoakmerch/merchops-backend/pkg/pagination"
)

type createMappingRequest struct {
	ProviderOrderID   int64    `json:"provider_order_id" validate:"required"`
	StorefrontOrderID *int64   `json:"storefront_order_id,omitempty"`
	Classification    string   `json:"classification" validate:"required,oneof=normal corrective gift"`
	Confidence        *float64 `json:"confidence,omitempty" validate:"omitempty,min=0,max=1"`
	Notes             *string  `json:"notes,omitempty" validate:"omitempty,max=2000"`
	LinkedBy          *string  `json:"linked_by,omitempty" validate:"omitempty,max=255"`
}

type correctMappingRequest struct {
	NewStorefrontOrderID *int64  `json:"new_storefront_order_id,omitempty"`
	Notes                *string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	CorrectedBy          *string `json:"corrected_by,omitempty" validate:"omitempty,max=255"`
}

type autoMapRequest struct {
	MaxOrders *int `json:"max_orders,omitempty" validate:"omitempty,min=1"`
}

// ListMappings returns the filtered, paginated mapping dashboard rows.
func ListMappings(svc links.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filters, err := buildMappingFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := parseListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListMappings(r.Context(), filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// CreateMapping records a manual link or classification for a provider order.
func CreateMapping(svc links.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createMappingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		classification, err := enums.ParseLinkClassification(req.Classification)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid classification"))
			return
		}

		input := links.CreateLinkInput{
			ProviderOrderID:   req.ProviderOrderID,
			StorefrontOrderID: req.StorefrontOrderID,
			Classification:    classification,
			LinkType:          enums.LinkTypeManualUserOverride,
			Status:            enums.LinkStatusActive,
			LinkedBy:          req.LinkedBy,
			Notes:             req.Notes,
		}
		if req.Confidence != nil {
			confidence := decimal.NewFromFloat(*req.Confidence).Round(3)
			input.Confidence = &confidence
		}

		link, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, link)
	}
}

// CorrectMapping repoints a link at a different storefront order and marks it
// verified.
func CorrectMapping(svc links.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		linkID, err := parseLinkID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req correctMappingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		link, err := svc.Correct(r.Context(), links.CorrectLinkInput{
			LinkID:               linkID,
			NewStorefrontOrderID: req.NewStorefrontOrderID,
			Notes:                req.Notes,
			CorrectedBy:          req.CorrectedBy,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, link)
	}
}

// RemoveMapping archives a link, leaving the row as history.
func RemoveMapping(svc links.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		linkID, err := parseLinkID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Remove(r.Context(), linkID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "archived"})
	}
}

// MappingStats returns the reconciliation coverage snapshot.
func MappingStats(svc links.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

// StorefrontOrderLinks returns every link that references a storefront order,
// live or historical.
func StorefrontOrderLinks(svc links.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "orderId")
		orderID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || orderID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "storefront order id must be a positive integer"))
			return
		}

		linkRows, err := svc.LinksForStorefrontOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"links": linkRows})
	}
}

// ListUnmapped returns provider orders with no live link plus their ranked
// candidate matches.
func ListUnmapped(svc automap.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := parseListParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.ListUnmapped(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// RunAutoMap triggers a synchronous auto-map batch and returns its summary.
func RunAutoMap(svc automap.Service, cfg config.AutoMapConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bounds := automap.Bounds{
			Concurrency: cfg.Concurrency,
			MaxOrders:   cfg.MaxOrders,
			TimeLimit:   cfg.TimeLimit,
		}
		if r.ContentLength > 0 {
			var req autoMapRequest
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if req.MaxOrders != nil {
				bounds.MaxOrders = *req.MaxOrders
			}
		}

		summary, err := svc.Run(r.Context(), bounds)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// SearchProviderOrders looks provider orders up by external id or recipient.
func SearchProviderOrders(repo orderstore.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		term := strings.TrimSpace(r.URL.Query().Get("q"))
		if term == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "query parameter q is required"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orders, err := repo.SearchProviderOrders(r.Context(), term, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "search provider orders"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"orders": orders})
	}
}

func parseLinkID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "linkId")
	linkID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "link id must be a valid uuid")
	}
	return linkID, nil
}

func parseListParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{Limit: limit, Offset: offset}, nil
}

func buildMappingFilters(r *http.Request) (links.MappingFilters, error) {
	var filters links.MappingFilters

	if raw := strings.TrimSpace(r.URL.Query().Get("classification")); raw != "" {
		classification, err := enums.ParseLinkClassification(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid classification filter")
		}
		filters.Classification = &classification
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, err := enums.ParseLinkStatus(strings.TrimSpace(part))
			if err != nil {
				return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
			}
			filters.Statuses = append(filters.Statuses, status)
		}
	}

	filters.Query = strings.TrimSpace(r.URL.Query().Get("q"))

	from, err := validators.ParseQueryTime(r, "date_from")
	if err != nil {
		return filters, err
	}
	filters.DateFrom = from

	to, err := validators.ParseQueryTime(r, "date_to")
	if err != nil {
		return filters, err
	}
	filters.DateTo = to

	if filters.DateFrom != nil && filters.DateTo != nil && filters.DateTo.Before(*filters.DateFrom) {
		return filters, pkgerrors.New(pkgerrors.CodeValidation, "date_to must not be before date_from")
	}

	return filters, nil
}
