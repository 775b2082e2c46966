package domain

import (
	"fmt"
	"strings"
)

// Role enumerates who is acting on a ticket.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleOperator  Role = "OPERATOR"
	RoleRequester Role = "REQUESTER"
)

// ParseRole validates a role literal.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleOperator:
		return RoleOperator, nil
	case RoleRequester:
		return RoleRequester, nil
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// Actor is the already-verified identity attached to a request. Line is
// only meaningful for operators, who are assigned to exactly one line.
type Actor struct {
	ID   string
	Role Role
	Line ServiceLine
}

// Requester is the anonymous self-service actor.
func Requester() Actor {
	return Actor{Role: RoleRequester}
}

// IsStaff reports whether the actor is an administrator or operator.
func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleOperator
}

// Operates reports whether the actor is the operator assigned to line.
func (a Actor) Operates(line ServiceLine) bool {
	return a.Role == RoleOperator && a.Line == line
}

func (a Actor) String() string {
	if a.Role == RoleOperator {
		return fmt.Sprintf("%s(%s)", a.Role, a.Line)
	}
	return string(a.Role)
}
