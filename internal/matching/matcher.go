package matching

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xrash/smetrics"

	"github.com/blueoakmerch/merchops-backend/pkg/db/models"
)

// Config carries the scoring policy. Zero values are replaced by the defaults
// below so a hand-built Matcher in tests behaves sensibly.
type Config struct {
	AmountWeight     float64
	NameWeight       float64
	DateWeight       float64
	CandidateWindow  time.Duration
	MaxAmountRelDiff float64
}

const (
	defaultAmountWeight     = 0.5
	defaultNameWeight       = 0.3
	defaultDateWeight       = 0.2
	defaultCandidateWindow  = 7 * 24 * time.Hour
	defaultMaxAmountRelDiff = 0.1
)

func (c Config) withDefaults() Config {
	if c.AmountWeight <= 0 && c.NameWeight <= 0 && c.DateWeight <= 0 {
		c.AmountWeight = defaultAmountWeight
		c.NameWeight = defaultNameWeight
		c.DateWeight = defaultDateWeight
	}
	if c.CandidateWindow <= 0 {
		c.CandidateWindow = defaultCandidateWindow
	}
	if c.MaxAmountRelDiff <= 0 {
		c.MaxAmountRelDiff = defaultMaxAmountRelDiff
	}
	return c
}

// Candidate is one scored storefront order, best candidates first after Rank.
type Candidate struct {
	StorefrontOrderID int64         `json:"storefront_order_id"`
	OrderNumber       string        `json:"order_number"`
	CustomerName      string        `json:"customer_name"`
	Score             float64       `json:"score"`
	Reasons           []string      `json:"reasons"`
	TimeGap           time.Duration `json:"-"`
}

// Matcher scores storefront orders as candidate matches for a provider order.
type Matcher struct {
	cfg Config
}

// NewMatcher builds a matcher with the provided scoring policy.
func NewMatcher(cfg Config) *Matcher {
	return &Matcher{cfg: cfg.withDefaults()}
}

// Window returns the candidate search window the matcher was configured with.
func (m *Matcher) Window() time.Duration {
	return m.cfg.CandidateWindow
}

// Rank scores every candidate against the provider order and returns them
// ordered best first. Ties are broken by smaller time gap, then by lower
// storefront order id, so the ranking is deterministic. An empty candidate
// slice yields an empty result, not an error.
func (m *Matcher) Rank(order models.ProviderOrder, candidates []models.StorefrontOrder) []Candidate {
	scored := make([]Candidate, 0, len(candidates))
	for _, cand := range candidates {
		scored = append(scored, m.score(order, cand))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		if scored[i].TimeGap != scored[j].TimeGap {
			return scored[i].TimeGap < scored[j].TimeGap
		}
		return scored[i].StorefrontOrderID < scored[j].StorefrontOrderID
	})
	return scored
}

func (m *Matcher) score(order models.ProviderOrder, cand models.StorefrontOrder) Candidate {
	amount := amountScore(order.TotalAmount, cand.TotalAmount, order.Currency, cand.Currency, m.cfg.MaxAmountRelDiff)
	name := nameScore(order.RecipientName, cand.CustomerName)
	gap := absDuration(order.ProviderCreatedAt.Sub(cand.PlacedAt))
	date := dateScore(gap, m.cfg.CandidateWindow)

	totalWeight := m.cfg.AmountWeight + m.cfg.NameWeight + m.cfg.DateWeight
	score := (m.cfg.AmountWeight*amount + m.cfg.NameWeight*name + m.cfg.DateWeight*date) / totalWeight

	var reasons []string
	switch {
	case amount == 1:
		reasons = append(reasons, "exact amount match")
	case amount > 0:
		reasons = append(reasons, fmt.Sprintf("amount similarity %.2f", amount))
	}
	if name >= 0.5 {
		reasons = append(reasons, fmt.Sprintf("name similarity %.2f", name))
	}
	if date > 0 {
		reasons = append(reasons, fmt.Sprintf("placed within %s", gap.Round(time.Minute)))
	}

	return Candidate{
		StorefrontOrderID: cand.ID,
		OrderNumber:       cand.OrderNumber,
		CustomerName:      cand.CustomerName,
		Score:             score,
		Reasons:           reasons,
		TimeGap:           gap,
	}
}

// minorUnitExponents lists the currencies whose minor unit is not 1/100.
var minorUnitExponents = map[string]int32{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
}

func amountTolerance(currency string) decimal.Decimal {
	exp, ok := minorUnitExponents[strings.ToUpper(currency)]
	if !ok {
		exp = 2
	}
	// half a unit of the currency's minor unit
	return decimal.New(5, -exp-1)
}

func amountScore(a, b decimal.Decimal, currencyA, currencyB string, maxRelDiff float64) float64 {
	if !strings.EqualFold(currencyA, currencyB) {
		return 0
	}
	diff := a.Sub(b).Abs()
	if diff.LessThanOrEqual(amountTolerance(currencyA)) {
		return 1
	}

	larger := decimal.Max(a.Abs(), b.Abs())
	if larger.IsZero() {
		return 0
	}
	relDiff, _ := diff.Div(larger).Float64()
	if relDiff >= maxRelDiff {
		return 0
	}
	return 1 - relDiff/maxRelDiff
}

func nameScore(a, b string) float64 {
	na, nb := normalizeName(a), normalizeName(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	jw := smetrics.JaroWinkler(na, nb, 0.7, 4)
	overlap := tokenOverlap(na, nb)
	if overlap > jw {
		return overlap
	}
	return jw
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func tokenOverlap(a, b string) float64 {
	setA := map[string]struct{}{}
	for _, token := range strings.Fields(a) {
		setA[token] = struct{}{}
	}
	setB := map[string]struct{}{}
	for _, token := range strings.Fields(b) {
		setB[token] = struct{}{}
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	shared := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	return float64(shared) / float64(union)
}

func dateScore(gap, window time.Duration) float64 {
	if window <= 0 || gap >= window {
		return 0
	}
	return 1 - float64(gap)/float64(window)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
