package auth_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bookhaven/library-service/internal/model"
	"github.com/bookhaven/library-service/pkg/auth"
)

func TestAuthorize(t *testing.T) {
	t.Parallel()

	member := model.AuthenticatedSession(model.User{ID: "u1", Role: model.RoleMember})
	staff := model.AuthenticatedSession(model.User{ID: "u2", Role: model.RoleStaff})
	admin := model.AuthenticatedSession(model.User{ID: "u3", Role: model.RoleAdmin})
	loading := model.Session{State: model.SessionLoading}

	tests := []struct {
		name     string
		session  model.Session
		required []model.Role
		want     auth.Decision
	}{
		{
			name:     "loading is pending even for admin-only",
			session:  loading,
			required: []model.Role{model.RoleAdmin},
			want:     auth.Pending,
		},
		{
			name:    "loading with no required roles is still pending",
			session: loading,
			want:    auth.Pending,
		},
		{
			name:    "anonymous denied unauthenticated",
			session: model.AnonymousSession(),
			want:    auth.DenyUnauthenticated,
		},
		{
			name:     "anonymous denied before role check",
			session:  model.AnonymousSession(),
			required: []model.Role{model.RoleMember},
			want:     auth.DenyUnauthenticated,
		},
		{
			name:    "any authenticated principal passes empty role set",
			session: member,
			want:    auth.Allow,
		},
		{
			name:     "member denied admin-only",
			session:  member,
			required: []model.Role{model.RoleAdmin},
			want:     auth.DenyForbidden,
		},
		{
			name:     "staff allowed in staff or admin",
			session:  staff,
			required: []model.Role{model.RoleStaff, model.RoleAdmin},
			want:     auth.Allow,
		},
		{
			name:     "admin allowed in staff or admin",
			session:  admin,
			required: []model.Role{model.RoleStaff, model.RoleAdmin},
			want:     auth.Allow,
		},
		{
			name:     "member denied staff or admin",
			session:  member,
			required: []model.Role{model.RoleStaff, model.RoleAdmin},
			want:     auth.DenyForbidden,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tt.want, auth.Authorize(tt.session, tt.required...))
			// same inputs, same answer
			require.Equal(t, tt.want, auth.Authorize(tt.session, tt.required...))
		})
	}
}

func TestAuthorize_NilUserAuthenticatedState(t *testing.T) {
	t.Parallel()
	// a session claiming authenticated without a user must not pass
	s := model.Session{State: model.SessionAuthenticated}
	require.Equal(t, auth.DenyUnauthenticated, auth.Authorize(s))
}
