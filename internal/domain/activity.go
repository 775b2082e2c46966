package domain

import "time"

// ActivityRecord is one row of the operational activity feed. It mirrors a
// ticket log entry but lives outside the ticket so the feed can be read
// across all tickets.
type ActivityRecord struct {
	ID           string
	TicketID     string
	CustomerName string
	ServiceLine  ServiceLine
	Message      string
	CreatedAt    time.Time
}

// StaffAccount is a login for an administrator or line operator.
type StaffAccount struct {
	ID           string
	Username     string
	PasswordHash string
	Role         Role
	Line         ServiceLine
	Active       bool
	CreatedAt    time.Time
}

// Actor returns the identity a logged-in account acts as.
func (s StaffAccount) Actor() Actor {
	actor := Actor{ID: s.ID, Role: s.Role}
	if s.Role == RoleOperator {
		actor.Line = s.Line
	}
	return actor
}
