package automap

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/blueoakmerch/merchops-backend/internal/links"
	"github.com/blueoakmerch/merchops-backend/internal/matching"
	"github.com/blueoakmerch/merchops-backend/internal/orderstore"
	"github.com/blueoakmerch/merchops-backend/pkg/db/models"
	"github.com/blueoakmerch/merchops-backend/pkg/enums"
	pkgerrors "github.com/blueoakmerch/merchops-backend/pkg/errors"
	"github.com/blueoakmerch/merchops-backend/pkg/logger"
	"github.com/blueoakmerch/merchops-backend/pkg/metrics"
	"github.com/blueoakmerch/merchops-backend/pkg/pagination"
)

const (
	jobName        = "automap"
	scanPageSize   = 200
	maxCandidates  = 5
	linkedByWorker = "automap"
)

// Policy carries the decision thresholds applied on top of the matcher's
// candidate scores.
type Policy struct {
	// HighConfidence is the minimum best score for an automatic active link.
	HighConfidence float64
	// ReviewThreshold is the minimum best score for a pending link.
	ReviewThreshold float64
	// MarginEpsilon is the minimum lead the best candidate must hold over the
	// runner-up before an active link is created without review.
	MarginEpsilon float64
}

// Bounds limit a single batch run.
type Bounds struct {
	Concurrency int
	// MaxOrders caps how many unlinked orders one run scans. Zero means all.
	MaxOrders int
	// TimeLimit bounds the run's wall clock. Zero means no limit.
	TimeLimit time.Duration
}

// Summary reports what one batch run did.
type Summary struct {
	Scanned        int           `json:"scanned"`
	AutoLinked     int           `json:"auto_linked"`
	PendingCreated int           `json:"pending_created"`
	LeftUnlinked   int           `json:"left_unlinked"`
	Skipped        int           `json:"skipped"`
	Failed         int           `json:"failed"`
	Errors         []string      `json:"errors,omitempty"`
	Elapsed        time.Duration `json:"elapsed_ns"`
}

// UnmappedOrder is one unlinked provider order plus its ranked candidates.
type UnmappedOrder struct {
	Order      models.ProviderOrder `json:"order"`
	Candidates []matching.Candidate `json:"candidates"`
}

// UnmappedList wraps a page of unmapped orders.
type UnmappedList struct {
	Orders     []UnmappedOrder `json:"orders"`
	TotalCount int64           `json:"total_count"`
}

// Service runs the batch auto-mapper and serves the unmapped order listing.
type Service interface {
	Run(ctx context.Context, bounds Bounds) (*Summary, error)
	ListUnmapped(ctx context.Context, params pagination.Params) (*UnmappedList, error)
}

type service struct {
	orders  orderstore.Repository
	links   links.Service
	matcher *matching.Matcher
	policy  Policy
	metrics *metrics.AutoMapMetrics
	logg    *logger.Logger
}

// NewService builds the auto-mapper. Metrics and logger may be nil.
func NewService(orders orderstore.Repository, linkSvc links.Service, matcher *matching.Matcher, policy Policy, m *metrics.AutoMapMetrics, logg *logger.Logger) (Service, error) {
	if orders == nil {
		return nil, fmt.Errorf("order store repository required")
	}
	if linkSvc == nil {
		return nil, fmt.Errorf("link service required")
	}
	if matcher == nil {
		return nil, fmt.Errorf("matcher required")
	}
	if policy.HighConfidence < policy.ReviewThreshold {
		return nil, fmt.Errorf("high confidence threshold must not be below the review threshold")
	}
	return &service{
		orders:  orders,
		links:   linkSvc,
		matcher: matcher,
		policy:  policy,
		metrics: m,
		logg:    logg,
	}, nil
}

// outcome is one order's batch result.
type outcome int

const (
	outcomeUnlinked outcome = iota
	outcomeActive
	outcomePending
	outcomeSkipped
)

func (s *service) Run(ctx context.Context, bounds Bounds) (*Summary, error) {
	start := time.Now()
	if bounds.Concurrency <= 0 {
		bounds.Concurrency = 1
	}
	if bounds.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, bounds.TimeLimit)
		defer cancel()
	}

	pool, err := s.collectUnlinked(ctx, bounds.MaxOrders)
	if err != nil {
		s.observeRun(start, false)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "collect unlinked provider orders")
	}

	summary := &Summary{Scanned: len(pool)}
	var mu sync.Mutex
	var runErrs error

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(bounds.Concurrency)
	for i := range pool {
		order := pool[i]
		group.Go(func() error {
			// a lapsed time limit leaves the rest of the pool untouched
			if groupCtx.Err() != nil {
				mu.Lock()
				summary.LeftUnlinked++
				mu.Unlock()
				return nil
			}

			result, err := s.processOrder(groupCtx, order)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				runErrs = multierr.Append(runErrs, fmt.Errorf("provider order %d: %w", order.ID, err))
				return nil
			}
			switch result {
			case outcomeActive:
				summary.AutoLinked++
			case outcomePending:
				summary.PendingCreated++
			case outcomeSkipped:
				summary.Skipped++
			default:
				summary.LeftUnlinked++
			}
			return nil
		})
	}
	// worker errors are aggregated into the summary, never propagated
	_ = group.Wait()

	summary.Elapsed = time.Since(start)
	for _, err := range multierr.Errors(runErrs) {
		summary.Errors = append(summary.Errors, err.Error())
	}

	s.observeRun(start, true)
	if s.metrics != nil {
		s.metrics.AddLinksCreated("active", summary.AutoLinked)
		s.metrics.AddLinksCreated("pending", summary.PendingCreated)
	}
	if s.logg != nil {
		lctx := s.logg.WithFields(ctx, map[string]any{
			"scanned":         summary.Scanned,
			"auto_linked":     summary.AutoLinked,
			"pending_created": summary.PendingCreated,
			"left_unlinked":   summary.LeftUnlinked,
			"skipped":         summary.Skipped,
			"failed":          summary.Failed,
			"elapsed":         summary.Elapsed.String(),
		})
		if runErrs != nil {
			s.logg.Error(lctx, "auto-map batch finished with failures", runErrs)
		} else {
			s.logg.Info(lctx, "auto-map batch finished")
		}
	}
	return summary, nil
}

func (s *service) collectUnlinked(ctx context.Context, maxOrders int) ([]models.ProviderOrder, error) {
	var pool []models.ProviderOrder
	offset := 0
	for {
		limit := scanPageSize
		if maxOrders > 0 && maxOrders-len(pool) < limit {
			limit = maxOrders - len(pool)
		}
		if limit <= 0 {
			break
		}

		page, _, err := s.orders.ListUnlinkedProviderOrders(ctx, pagination.Params{Limit: limit, Offset: offset})
		if err != nil {
			return nil, err
		}
		pool = append(pool, page...)
		if len(page) < limit {
			break
		}
		offset += len(page)
	}
	return pool, nil
}

func (s *service) processOrder(ctx context.Context, order models.ProviderOrder) (outcome, error) {
	candidates, err := s.orders.ListStorefrontOrdersAround(ctx, order.ProviderCreatedAt, s.matcher.Window())
	if err != nil {
		return outcomeUnlinked, fmt.Errorf("list candidates: %w", err)
	}

	ranked := s.matcher.Rank(order, candidates)
	status, best, ok := s.decide(ranked)
	if !ok {
		return outcomeUnlinked, nil
	}

	confidence := decimal.NewFromFloat(best.Score).Round(3)
	linkedBy := linkedByWorker
	_, err = s.links.Create(ctx, links.CreateLinkInput{
		ProviderOrderID:   order.ID,
		StorefrontOrderID: &best.StorefrontOrderID,
		Classification:    enums.LinkClassificationNormal,
		LinkType:          enums.LinkTypeAutomatic,
		Status:            status,
		Confidence:        &confidence,
		LinkedBy:          &linkedBy,
	})
	if err != nil {
		// another writer linked this provider order between the scan and now
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			return outcomeSkipped, nil
		}
		return outcomeUnlinked, err
	}

	if status == enums.LinkStatusActive {
		return outcomeActive, nil
	}
	return outcomePending, nil
}

// decide applies the threshold policy to a ranked candidate list. A best
// score at or above the high confidence threshold still only auto-links when
// it leads the runner-up by the margin epsilon; an ambiguous top pair goes to
// review instead.
func (s *service) decide(ranked []matching.Candidate) (enums.LinkStatus, matching.Candidate, bool) {
	if len(ranked) == 0 {
		return "", matching.Candidate{}, false
	}

	best := ranked[0]
	if best.Score < s.policy.ReviewThreshold {
		return "", matching.Candidate{}, false
	}

	runnerUp := 0.0
	if len(ranked) > 1 {
		runnerUp = ranked[1].Score
	}
	if best.Score >= s.policy.HighConfidence && best.Score-runnerUp >= s.policy.MarginEpsilon {
		return enums.LinkStatusActive, best, true
	}
	return enums.LinkStatusPendingVerification, best, true
}

func (s *service) ListUnmapped(ctx context.Context, params pagination.Params) (*UnmappedList, error) {
	orders, total, err := s.orders.ListUnlinkedProviderOrders(ctx, pagination.Normalize(params))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unlinked provider orders")
	}

	out := make([]UnmappedOrder, 0, len(orders))
	for _, order := range orders {
		candidates, err := s.orders.ListStorefrontOrdersAround(ctx, order.ProviderCreatedAt, s.matcher.Window())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list candidate storefront orders")
		}
		ranked := s.matcher.Rank(order, candidates)
		if len(ranked) > maxCandidates {
			ranked = ranked[:maxCandidates]
		}
		out = append(out, UnmappedOrder{Order: order, Candidates: ranked})
	}

	return &UnmappedList{Orders: out, TotalCount: total}, nil
}

func (s *service) observeRun(start time.Time, success bool) {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveDuration(jobName, time.Since(start))
	if success {
		s.metrics.IncSuccess(jobName)
	} else {
		s.metrics.IncFailure(jobName)
	}
}
