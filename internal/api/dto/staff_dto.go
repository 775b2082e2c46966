package dto

import (
	"time"

	"github.com/spec-kit/petcare-queue/internal/domain"
)

// StaffLoginRequest payload.
type StaffLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// StaffLoginResponse carries the issued bearer token.
type StaffLoginResponse struct {
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expires_at"`
	Staff     StaffAccountSummary `json:"staff"`
}

// StaffAccountSummary is the public view of a staff account.
type StaffAccountSummary struct {
	ID          string             `json:"id"`
	Username    string             `json:"username"`
	Role        domain.Role        `json:"role"`
	ServiceLine domain.ServiceLine `json:"service_line,omitempty"`
}

// NewStaffAccountSummary drops the credential fields of an account.
func NewStaffAccountSummary(a *domain.StaffAccount) StaffAccountSummary {
	summary := StaffAccountSummary{ID: a.ID, Username: a.Username, Role: a.Role}
	if a.Role == domain.RoleOperator {
		summary.ServiceLine = a.Line
	}
	return summary
}

// ActivityResponse is one row of the staff activity feed.
type ActivityResponse struct {
	ID           string             `json:"id"`
	TicketID     string             `json:"ticket_id"`
	CustomerName string             `json:"customer_name"`
	ServiceLine  domain.ServiceLine `json:"service_line"`
	Message      string             `json:"message"`
	CreatedAt    time.Time          `json:"created_at"`
}

// NewActivityResponses maps activity records.
func NewActivityResponses(records []domain.ActivityRecord) []ActivityResponse {
	out := make([]ActivityResponse, 0, len(records))
	for _, r := range records {
		out = append(out, ActivityResponse{
			ID:           r.ID,
			TicketID:     r.TicketID,
			CustomerName: r.CustomerName,
			ServiceLine:  r.ServiceLine,
			Message:      r.Message,
			CreatedAt:    r.CreatedAt,
		})
	}
	return out
}
