package history

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/fraudshield/internal/prediction"
	"github.com/gyaneshwarpardhi/fraudshield/internal/risk"
)

// ErrInvalidPageSize is returned for a page size below 1.
var ErrInvalidPageSize = errors.New("page size must be at least 1")

// Filter narrows a listing. Zero fields do not filter; set fields are ANDed.
// Date bounds are inclusive and compared as plain strings against timestamp.
type Filter struct {
	RiskLevel risk.Level
	IsFraud   *bool
	DateFrom  string
	DateTo    string
}

func (f Filter) match(r prediction.Record) bool {
	if f.RiskLevel != "" && r.RiskLevel != f.RiskLevel {
		return false
	}
	if f.IsFraud != nil && r.IsFraud != *f.IsFraud {
		return false
	}
	if f.DateFrom != "" && r.Timestamp < f.DateFrom {
		return false
	}
	if f.DateTo != "" && r.Timestamp > f.DateTo {
		return false
	}
	return true
}

// Query selects one page of the filtered listing.
type Query struct {
	Page     int
	PageSize int
	Filter   Filter
}

// Page is one slice of a listing plus its position.
type Page struct {
	Data        []prediction.Record `json:"data"`
	Page        int                 `json:"page"`
	PageSize    int                 `json:"page_size"`
	TotalItems  int                 `json:"total_items"`
	TotalPages  int                 `json:"total_pages"`
	HasNext     bool                `json:"has_next"`
	HasPrevious bool                `json:"has_previous"`
}

// ListPaginated filters the newest-first listing and returns the requested
// page, clamped into [1, TotalPages]. TotalPages is at least 1.
func (s *Store) ListPaginated(ctx context.Context, q Query) (*Page, error) {
	if q.PageSize < 1 {
		return nil, ErrInvalidPageSize
	}
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]prediction.Record, 0, len(all))
	for _, r := range all {
		if q.Filter.match(r) {
			filtered = append(filtered, r)
		}
	}

	total := len(filtered)
	pages := (total + q.PageSize - 1) / q.PageSize
	if pages < 1 {
		pages = 1
	}
	page := min(max(q.Page, 1), pages)

	start := min((page-1)*q.PageSize, total)
	end := min(start+q.PageSize, total)

	return &Page{
		Data:        filtered[start:end],
		Page:        page,
		PageSize:    q.PageSize,
		TotalItems:  total,
		TotalPages:  pages,
		HasNext:     page < pages,
		HasPrevious: page > 1,
	}, nil
}

// Stats summarises the whole record set.
type Stats struct {
	TotalPredictions   int                `json:"total_predictions"`
	TotalFraudDetected int                `json:"total_fraud_detected"`
	FraudRate          float64            `json:"fraud_rate"`
	AverageRiskScore   float64            `json:"average_risk_score"`
	RiskDistribution   map[risk.Level]int `json:"risk_distribution"`
}

// Statistics computes Stats over all records. An empty store yields zeros.
func (s *Store) Statistics(ctx context.Context) (*Stats, error) {
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	st := &Stats{RiskDistribution: make(map[risk.Level]int, 4)}
	for _, l := range risk.Levels() {
		st.RiskDistribution[l] = 0
	}
	if len(all) == 0 {
		return st, nil
	}

	var scoreSum int64
	for _, r := range all {
		if r.IsFraud {
			st.TotalFraudDetected++
		}
		scoreSum += int64(r.RiskScore)
		if _, known := st.RiskDistribution[r.RiskLevel]; known {
			st.RiskDistribution[r.RiskLevel]++
		}
	}

	total := decimal.NewFromInt(int64(len(all)))
	st.TotalPredictions = len(all)
	st.FraudRate = decimal.NewFromInt(int64(st.TotalFraudDetected)).Div(total).RoundBank(4).InexactFloat64()
	st.AverageRiskScore = decimal.NewFromInt(scoreSum).Div(total).RoundBank(2).InexactFloat64()
	return st, nil
}
