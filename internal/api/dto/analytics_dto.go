package dto

import (
	"github.com/spec-kit/petcare-queue/internal/analytics"
	"github.com/spec-kit/petcare-queue/internal/domain"
	"github.com/spec-kit/petcare-queue/internal/service"
)

// BucketResponse is one reporting slot.
type BucketResponse struct {
	Key       string `json:"key"`
	Label     string `json:"label"`
	Completed int    `json:"completed"`
	Cancelled int    `json:"cancelled"`
	InProcess int    `json:"in_process"`
	Total     int    `json:"total"`
}

// TotalsResponse sums a report.
type TotalsResponse struct {
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
	InProcess int `json:"in_process"`
	Total     int `json:"total"`
}

// AnalyticsResponse is a folded report.
type AnalyticsResponse struct {
	Granularity analytics.Granularity `json:"granularity"`
	Reference   string                `json:"reference"`
	ServiceLine *domain.ServiceLine   `json:"service_line,omitempty"`
	From        string                `json:"from"`
	To          string                `json:"to"`
	Buckets     []BucketResponse      `json:"buckets"`
	Totals      TotalsResponse        `json:"totals"`
}

// NewAnalyticsResponse maps a report. To is reported inclusive.
func NewAnalyticsResponse(r *service.Report) AnalyticsResponse {
	resp := AnalyticsResponse{
		Granularity: r.Granularity,
		Reference:   r.Reference.Format(domain.DateLayout),
		ServiceLine: r.Line,
		From:        r.From.Format(domain.DateLayout),
		To:          r.To.AddDate(0, 0, -1).Format(domain.DateLayout),
		Buckets:     make([]BucketResponse, 0, len(r.Buckets)),
		Totals: TotalsResponse{
			Completed: r.Totals.Completed,
			Cancelled: r.Totals.Cancelled,
			InProcess: r.Totals.InProcess,
			Total:     r.Totals.Total,
		},
	}
	for _, b := range r.Buckets {
		resp.Buckets = append(resp.Buckets, BucketResponse{
			Key:       b.Key,
			Label:     b.Label,
			Completed: b.CompletedCount,
			Cancelled: b.CancelledCount,
			InProcess: b.InProcess(),
			Total:     b.TotalCount,
		})
	}
	return resp
}
