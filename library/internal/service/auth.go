package service

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/bookhaven/library-service/internal/errs"
	"github.com/bookhaven/library-service/internal/model"
	"github.com/bookhaven/library-service/pkg/auth"
)

const (
	tokenTTL              = 24 * time.Hour
	defaultMembershipType = "standard"
)

// Register creates the identity record and then the application
// profile. The profile's role is always member: a role smuggled into
// the request never survives registration. If the profile insert fails
// after the identity insert succeeded, the caller gets
// ErrPartialRegistration and the orphaned identity resolves anonymous
// everywhere (RestoreSession refuses identities without a profile).
func (s *Service) Register(ctx context.Context, req model.RegisterRequest) (model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return model.User{}, errors.Wrap(err, "hash password")
	}

	id := uuid.NewString()
	if err := s.repo.CreateIdentity(ctx, model.Credentials{
		UserID:       id,
		Email:        req.Email,
		PasswordHash: string(hash),
	}); err != nil {
		return model.User{}, err
	}

	user, err := s.repo.CreateUser(ctx, model.User{
		ID:                  id,
		Name:                req.Name,
		Email:               req.Email,
		Role:                model.RoleMember,
		MembershipType:      defaultMembershipType,
		MembershipStartDate: s.now().UTC(),
	})
	if err != nil {
		s.log.Error("register: profile insert failed after identity insert",
			zap.String("email", req.Email), zap.Error(err))
		return model.User{}, errs.ErrPartialRegistration
	}
	return user, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (model.LoginResponse, error) {
	cred, err := s.repo.GetIdentityByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.LoginResponse{}, errs.ErrInvalidCredentials
		}
		return model.LoginResponse{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return model.LoginResponse{}, errs.ErrInvalidCredentials
	}

	user, err := s.repo.GetUser(ctx, cred.UserID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			// identity without profile: never authenticates
			return model.LoginResponse{}, errs.ErrInvalidCredentials
		}
		return model.LoginResponse{}, err
	}

	expiresAt := s.now().Add(tokenTTL)
	claims := &auth.Claims{
		Email:      user.Email,
		Generation: cred.SessionGeneration,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(s.now()),
		},
	}
	claims.Profile.UserID = user.ID
	claims.Profile.Role = user.Role

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(auth.JWTKey)
	if err != nil {
		return model.LoginResponse{}, errors.Wrap(err, "sign token")
	}

	return model.LoginResponse{
		AccessToken: tokenString,
		ExpiresIn:   int(tokenTTL.Seconds()),
		User:        user,
	}, nil
}

// RestoreSession resolves a bearer token into a session. Invalid or
// stale tokens and orphaned identities resolve anonymous; only a
// gateway failure is an error, so the caller can distinguish "not
// logged in" from "cannot know yet".
//
// The generation check is what makes in-flight restores after a logout
// harmless: logout bumps the stored generation, so a token minted
// before it can never resolve authenticated again.
func (s *Service) RestoreSession(ctx context.Context, token string) (model.Session, error) {
	claims, err := auth.ParseToken(token)
	if err != nil {
		return model.AnonymousSession(), nil
	}

	cred, err := s.repo.GetIdentity(ctx, claims.Profile.UserID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.AnonymousSession(), nil
		}
		return model.Session{State: model.SessionLoading}, err
	}
	if cred.SessionGeneration != claims.Generation {
		return model.AnonymousSession(), nil
	}

	user, err := s.repo.GetUser(ctx, claims.Profile.UserID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.AnonymousSession(), nil
		}
		return model.Session{State: model.SessionLoading}, err
	}
	return model.AuthenticatedSession(user), nil
}

// Logout revokes every outstanding token for the user. The caller's
// session is anonymous from here on regardless of the revoke outcome;
// a failed bump is logged, not surfaced.
func (s *Service) Logout(ctx context.Context, userID string) {
	if err := s.repo.BumpSessionGeneration(ctx, userID); err != nil {
		s.log.Warn("logout: revoke failed", zap.String("userId", userID), zap.Error(err))
	}
}

func (s *Service) GetProfile(ctx context.Context, userID string) (model.Profile, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}
	return model.Profile{User: user, Permissions: user.Permissions()}, nil
}

func (s *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.repo.ListUsers(ctx)
}

func (s *Service) ChangeUserRole(ctx context.Context, userID string, role model.Role) (model.User, error) {
	if !role.Valid() {
		return model.User{}, errors.Errorf("unknown role %q", role)
	}
	return s.repo.UpdateUserRole(ctx, userID, role)
}

func (s *Service) UpdateProfile(ctx context.Context, userID string, name, membershipType *string) (model.User, error) {
	return s.repo.UpdateUserProfile(ctx, userID, name, membershipType)
}
