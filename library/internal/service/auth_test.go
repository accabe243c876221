package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/golang/mock/gomock"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bookhaven/library-service/internal/errs"
	"github.com/bookhaven/library-service/internal/model"
	mock_repository "github.com/bookhaven/library-service/library/internal/repository/mocks"
	"github.com/bookhaven/library-service/library/internal/service"
	"github.com/bookhaven/library-service/pkg/auth"
)

func newService(t *testing.T) (*service.Service, *mock_repository.MockRepository) {
	t.Helper()
	c := gomock.NewController(t)
	t.Cleanup(c.Finish)
	repo := mock_repository.NewMockRepository(c)
	svc := service.NewService(repo, nil, zap.NewExample().Named("test"))
	return svc, repo
}

func signToken(t *testing.T, userID string, role model.Role, generation int64) string {
	t.Helper()
	claims := &auth.Claims{
		Generation: generation,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	claims.Profile.UserID = userID
	claims.Profile.Role = role
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(auth.JWTKey)
	require.NoError(t, err)
	return token
}

func TestService_Register_ForcesMemberRole(t *testing.T) {
	t.Parallel()
	svc, repo := newService(t)
	ctx := context.Background()

	repo.EXPECT().CreateIdentity(gomock.Any(), gomock.Any()).Return(nil)
	repo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, u model.User) (model.User, error) {
			require.Equal(t, model.RoleMember, u.Role)
			require.Equal(t, "a@b.com", u.Email)
			return u, nil
		})

	// caller tries to smuggle a role
	user, err := svc.Register(ctx, model.RegisterRequest{
		Name:     "Eve",
		Email:    "a@b.com",
		Password: "secret-password",
		Role:     "admin",
	})
	require.NoError(t, err)
	require.Equal(t, model.RoleMember, user.Role)
}

func TestService_Register_PartialFailure(t *testing.T) {
	t.Parallel()
	svc, repo := newService(t)

	repo.EXPECT().CreateIdentity(gomock.Any(), gomock.Any()).Return(nil)
	repo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).
		Return(model.User{}, errors.New("db internal"))

	_, err := svc.Register(context.Background(), model.RegisterRequest{
		Name:     "Eve",
		Email:    "a@b.com",
		Password: "secret-password",
	})
	require.ErrorIs(t, err, errs.ErrPartialRegistration)
}

func TestService_Register_DuplicateEmail(t *testing.T) {
	t.Parallel()
	svc, repo := newService(t)

	repo.EXPECT().CreateIdentity(gomock.Any(), gomock.Any()).Return(errs.ErrDuplicateEmail)

	_, err := svc.Register(context.Background(), model.RegisterRequest{
		Name:     "Eve",
		Email:    "a@b.com",
		Password: "secret-password",
	})
	require.ErrorIs(t, err, errs.ErrDuplicateEmail)
}

func TestService_Login(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("right-password"), bcrypt.DefaultCost)
	require.NoError(t, err)
	cred := model.Credentials{UserID: "u1", Email: "a@b.com", PasswordHash: string(hash), SessionGeneration: 3}
	user := model.User{ID: "u1", Name: "Ann", Email: "a@b.com", Role: model.RoleMember}

	t.Run("ok", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)
		repo.EXPECT().GetIdentityByEmail(gomock.Any(), "a@b.com").Return(cred, nil)
		repo.EXPECT().GetUser(gomock.Any(), "u1").Return(user, nil)

		resp, err := svc.Login(context.Background(), "a@b.com", "right-password")
		require.NoError(t, err)
		require.NotEmpty(t, resp.AccessToken)
		require.Equal(t, int((24*time.Hour).Seconds()), resp.ExpiresIn)
		require.Equal(t, user, resp.User)

		claims, err := auth.ParseToken(resp.AccessToken)
		require.NoError(t, err)
		require.Equal(t, "u1", claims.Profile.UserID)
		require.Equal(t, int64(3), claims.Generation)
	})

	t.Run("wrong password", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)
		repo.EXPECT().GetIdentityByEmail(gomock.Any(), "a@b.com").Return(cred, nil)

		_, err := svc.Login(context.Background(), "a@b.com", "wrong-password")
		require.ErrorIs(t, err, errs.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)
		repo.EXPECT().GetIdentityByEmail(gomock.Any(), "x@b.com").Return(model.Credentials{}, errs.ErrNotFound)

		_, err := svc.Login(context.Background(), "x@b.com", "whatever-password")
		require.ErrorIs(t, err, errs.ErrInvalidCredentials)
	})

	t.Run("orphaned identity never authenticates", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)
		repo.EXPECT().GetIdentityByEmail(gomock.Any(), "a@b.com").Return(cred, nil)
		repo.EXPECT().GetUser(gomock.Any(), "u1").Return(model.User{}, errs.ErrNotFound)

		_, err := svc.Login(context.Background(), "a@b.com", "right-password")
		require.ErrorIs(t, err, errs.ErrInvalidCredentials)
	})
}

func TestService_RestoreSession(t *testing.T) {
	t.Parallel()

	user := model.User{ID: "u1", Name: "Ann", Email: "a@b.com", Role: model.RoleStaff}

	t.Run("valid token resolves authenticated", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)
		repo.EXPECT().GetIdentity(gomock.Any(), "u1").
			Return(model.Credentials{UserID: "u1", SessionGeneration: 2}, nil)
		repo.EXPECT().GetUser(gomock.Any(), "u1").Return(user, nil)

		s, err := svc.RestoreSession(context.Background(), signToken(t, "u1", model.RoleStaff, 2))
		require.NoError(t, err)
		require.Equal(t, model.SessionAuthenticated, s.State)
		require.Equal(t, user, *s.User)
	})

	t.Run("garbage token resolves anonymous", func(t *testing.T) {
		t.Parallel()
		svc, _ := newService(t)
		s, err := svc.RestoreSession(context.Background(), "not-a-token")
		require.NoError(t, err)
		require.Equal(t, model.SessionAnonymous, s.State)
	})

	t.Run("stale generation after logout resolves anonymous", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)
		// logout bumped the stored generation to 3; the in-flight
		// restore still carries 2 and must not win
		repo.EXPECT().GetIdentity(gomock.Any(), "u1").
			Return(model.Credentials{UserID: "u1", SessionGeneration: 3}, nil)

		s, err := svc.RestoreSession(context.Background(), signToken(t, "u1", model.RoleStaff, 2))
		require.NoError(t, err)
		require.Equal(t, model.SessionAnonymous, s.State)
	})

	t.Run("missing profile resolves anonymous, not fabricated", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)
		repo.EXPECT().GetIdentity(gomock.Any(), "u1").
			Return(model.Credentials{UserID: "u1", SessionGeneration: 2}, nil)
		repo.EXPECT().GetUser(gomock.Any(), "u1").Return(model.User{}, errs.ErrNotFound)

		s, err := svc.RestoreSession(context.Background(), signToken(t, "u1", model.RoleStaff, 2))
		require.NoError(t, err)
		require.Equal(t, model.SessionAnonymous, s.State)
	})

	t.Run("gateway failure keeps session loading", func(t *testing.T) {
		t.Parallel()
		svc, repo := newService(t)
		repo.EXPECT().GetIdentity(gomock.Any(), "u1").
			Return(model.Credentials{}, errors.New("connection refused"))

		s, err := svc.RestoreSession(context.Background(), signToken(t, "u1", model.RoleStaff, 2))
		require.Error(t, err)
		require.Equal(t, model.SessionLoading, s.State)
	})
}

func TestService_ChangeUserRole_RejectsUnknownRole(t *testing.T) {
	t.Parallel()
	svc, _ := newService(t)
	_, err := svc.ChangeUserRole(context.Background(), "u1", model.Role("root"))
	require.Error(t, err)
}
