package repository

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bookhaven/library-service/internal/errs"
	"github.com/bookhaven/library-service/internal/model"
)

const (
	userColumns       = `id, name, email, role, membership_type, membership_start_date`
	credentialColumns = `user_id, email, password_hash, session_generation`
)

func (r *repository) CreateIdentity(ctx context.Context, cred model.Credentials) error {
	q, args, err := qb.Insert(credentialsTableName).
		Columns("user_id", "email", "password_hash").
		Values(cred.UserID, cred.Email, cred.PasswordHash).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return errs.ErrDuplicateEmail
		}
		r.log.Error("CreateIdentity", zap.String("email", cred.Email), zap.Error(err))
		return err
	}
	return nil
}

func (r *repository) GetIdentityByEmail(ctx context.Context, email string) (model.Credentials, error) {
	q, args, err := qb.Select(credentialColumns).
		From(credentialsTableName).
		Where(sq.Eq{"email": email}).
		ToSql()
	if err != nil {
		return model.Credentials{}, err
	}
	var cred model.Credentials
	if err := r.db.GetContext(ctx, &cred, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Credentials{}, errs.ErrNotFound
		}
		return model.Credentials{}, err
	}
	return cred, nil
}

func (r *repository) GetIdentity(ctx context.Context, userID string) (model.Credentials, error) {
	q, args, err := qb.Select(credentialColumns).
		From(credentialsTableName).
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return model.Credentials{}, err
	}
	var cred model.Credentials
	if err := r.db.GetContext(ctx, &cred, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Credentials{}, errs.ErrNotFound
		}
		return model.Credentials{}, err
	}
	return cred, nil
}

// BumpSessionGeneration invalidates every token issued before now.
func (r *repository) BumpSessionGeneration(ctx context.Context, userID string) error {
	q := `update credentials set session_generation = session_generation + 1 where user_id = $1`
	res, err := r.db.ExecContext(ctx, q, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *repository) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	q, args, err := qb.Insert(usersTableName).
		Columns("id", "name", "email", "role", "membership_type", "membership_start_date").
		Values(user.ID, user.Name, user.Email, user.Role, user.MembershipType, user.MembershipStartDate).
		Suffix("returning " + userColumns).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	var created model.User
	if err := r.db.GetContext(ctx, &created, q, args...); err != nil {
		r.log.Error("CreateUser", zap.String("email", user.Email), zap.Error(err))
		return model.User{}, err
	}
	return created, nil
}

func (r *repository) GetUser(ctx context.Context, id string) (model.User, error) {
	q, args, err := qb.Select(userColumns).
		From(usersTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	var user model.User
	if err := r.db.GetContext(ctx, &user, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, errs.ErrNotFound
		}
		return model.User{}, err
	}
	return user, nil
}

func (r *repository) ListUsers(ctx context.Context) ([]model.User, error) {
	q, args, err := qb.Select(userColumns).
		From(usersTableName).
		OrderBy("membership_start_date", "id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var users []model.User
	if err := r.db.SelectContext(ctx, &users, q, args...); err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repository) UpdateUserRole(ctx context.Context, id string, role model.Role) (model.User, error) {
	q, args, err := qb.Update(usersTableName).
		Set("role", role).
		Where(sq.Eq{"id": id}).
		Suffix("returning " + userColumns).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	var user model.User
	if err := r.db.GetContext(ctx, &user, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, errs.ErrNotFound
		}
		return model.User{}, err
	}
	return user, nil
}

func (r *repository) UpdateUserProfile(ctx context.Context, id string, name, membershipType *string) (model.User, error) {
	if name == nil && membershipType == nil {
		return r.GetUser(ctx, id)
	}
	upd := qb.Update(usersTableName).Where(sq.Eq{"id": id})
	if name != nil {
		upd = upd.Set("name", *name)
	}
	if membershipType != nil {
		upd = upd.Set("membership_type", *membershipType)
	}
	q, args, err := upd.Suffix("returning " + userColumns).ToSql()
	if err != nil {
		return model.User{}, err
	}
	var user model.User
	if err := r.db.GetContext(ctx, &user, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, errs.ErrNotFound
		}
		return model.User{}, err
	}
	return user, nil
}
