package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bookhaven/library-service/internal/errs"
	"github.com/bookhaven/library-service/internal/model"
)

const loanColumns = `id, member_id, book_id, loan_date, due_date, return_date, status`

// CreateLoan inserts the loan and takes a copy in one transaction.
// The availability check and the decrement are a single conditional
// update: zero affected rows fails the whole borrow, so two borrowers
// racing for the last copy cannot both succeed. The partial unique
// index on (member_id, book_id) where status='active' rejects a
// duplicate active loan at the same point.
func (r *repository) CreateLoan(ctx context.Context, memberID, bookID string, loanDate, dueDate time.Time) (model.Loan, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Loan{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	q, args, err := qb.Insert(loansTableName).
		Columns("id", "member_id", "book_id", "loan_date", "due_date", "status").
		Values(uuid.NewString(), memberID, bookID, loanDate, dueDate, model.StatusActive).
		Suffix("returning " + loanColumns).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	var loan model.Loan
	if err := tx.GetContext(ctx, &loan, q, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return model.Loan{}, errs.ErrAlreadyBorrowed
			case pgerrcode.ForeignKeyViolation:
				return model.Loan{}, errs.ErrNotFound
			}
		}
		r.log.Error("CreateLoan", zap.String("q", q), zap.Any("args", args))
		return model.Loan{}, err
	}

	res, err := tx.ExecContext(ctx,
		`update books set available_copies = available_copies - 1
where id = $1 and available_copies > 0`, bookID)
	if err != nil {
		return model.Loan{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Loan{}, errs.ErrUnavailable
	}

	if err := tx.Commit(); err != nil {
		return model.Loan{}, err
	}
	return loan, nil
}

// ReturnLoan flips the loan to returned and gives the copy back in one
// transaction. The increment is bounded by total_copies; hitting the
// bound means the books row was corrupted elsewhere, so the whole
// return is rolled back and reported instead of clamped silently.
func (r *repository) ReturnLoan(ctx context.Context, loanID string, returnDate time.Time) (model.Loan, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Loan{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	q := fmt.Sprintf(`update %s
	set status = $2, return_date = $3
where id = $1 and status = $4
returning %s`, loansTableName, loanColumns)

	var loan model.Loan
	if err := tx.GetContext(ctx, &loan, q, loanID, model.StatusReturned, returnDate, model.StatusActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Loan{}, r.returnMissReason(ctx, loanID)
		}
		return model.Loan{}, err
	}

	res, err := tx.ExecContext(ctx,
		`update books set available_copies = available_copies + 1
where id = $1 and available_copies < total_copies`, loan.BookID)
	if err != nil {
		return model.Loan{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r.log.Error("ReturnLoan availability above total",
			zap.String("loanId", loanID), zap.String("bookId", loan.BookID))
		return model.Loan{}, errs.ErrInvariantViolation
	}

	if err := tx.Commit(); err != nil {
		return model.Loan{}, err
	}
	return loan, nil
}

func (r *repository) returnMissReason(ctx context.Context, loanID string) error {
	var status model.LoanStatus
	err := r.db.QueryRowContext(ctx,
		fmt.Sprintf(`select status from %s where id = $1`, loansTableName), loanID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errs.ErrNotFound
		}
		return err
	}
	if status == model.StatusReturned {
		return errs.ErrAlreadyReturned
	}
	return errs.ErrNotFound
}

func (r *repository) GetLoan(ctx context.Context, id string) (model.Loan, error) {
	q, args, err := qb.Select(loanColumns).
		From(loansTableName).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}
	var loan model.Loan
	if err := r.db.GetContext(ctx, &loan, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Loan{}, errs.ErrNotFound
		}
		return model.Loan{}, err
	}
	return loan, nil
}

func (r *repository) ListLoansByMember(ctx context.Context, memberID string) ([]model.Loan, error) {
	q, args, err := qb.Select("l.id", "l.member_id", "l.book_id", "b.title as book_title",
		"l.loan_date", "l.due_date", "l.return_date", "l.status").
		From(loansTableName + " l").
		Join(fmt.Sprintf("%s b on b.id = l.book_id", booksTableName)).
		Where(sq.Eq{"l.member_id": memberID}).
		OrderBy("l.loan_date desc", "l.id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var loans []model.Loan
	if err := r.db.SelectContext(ctx, &loans, q, args...); err != nil {
		return nil, err
	}
	return loans, nil
}

func (r *repository) ListLoans(ctx context.Context) ([]model.Loan, error) {
	q, args, err := qb.Select("l.id", "l.member_id", "u.name as member_name", "l.book_id",
		"b.title as book_title", "l.loan_date", "l.due_date", "l.return_date", "l.status").
		From(loansTableName + " l").
		Join(fmt.Sprintf("%s b on b.id = l.book_id", booksTableName)).
		Join(fmt.Sprintf("%s u on u.id = l.member_id", usersTableName)).
		OrderBy("l.loan_date desc", "l.id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var loans []model.Loan
	if err := r.db.SelectContext(ctx, &loans, q, args...); err != nil {
		return nil, err
	}
	return loans, nil
}
