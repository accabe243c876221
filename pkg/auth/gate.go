package auth

import (
	"github.com/bookhaven/library-service/internal/model"
)

type Decision int

const (
	Pending Decision = iota + 1
	Allow
	DenyUnauthenticated
	DenyForbidden
)

func (d Decision) String() string {
	switch d {
	case Pending:
		return "PENDING"
	case Allow:
		return "ALLOW"
	case DenyUnauthenticated:
		return "DENY_UNAUTHENTICATED"
	case DenyForbidden:
		return "DENY_FORBIDDEN"
	}
	return "UNKNOWN"
}

// Authorize decides whether the session's principal may proceed given
// a required role set. Pure: no side effects, same inputs always yield
// the same decision. An empty required set admits any authenticated
// principal. A loading session yields Pending, never a default
// allow/deny.
func Authorize(s model.Session, required ...model.Role) Decision {
	if s.State == model.SessionLoading {
		return Pending
	}
	if s.State != model.SessionAuthenticated || s.User == nil {
		return DenyUnauthenticated
	}
	if len(required) == 0 {
		return Allow
	}
	for _, r := range required {
		if s.User.Role == r {
			return Allow
		}
	}
	return DenyForbidden
}
