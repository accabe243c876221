package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bookhaven/library-service/internal/errs"
	"github.com/bookhaven/library-service/internal/model"
)

// BorrowBook creates an active loan and takes one copy. Eligibility is
// re-derived from the member's role at call time; the availability
// check-and-decrement itself lives in the repository as one
// conditional update, so concurrent borrows of the last copy cannot
// both succeed.
func (s *Service) BorrowBook(ctx context.Context, memberID, bookID string) (model.Loan, error) {
	member, err := s.repo.GetUser(ctx, memberID)
	if err != nil {
		return model.Loan{}, err
	}
	if !member.Permissions().CanBorrowBooks {
		return model.Loan{}, errs.ErrNotEligible
	}

	now := s.now().UTC()
	loan, err := s.repo.CreateLoan(ctx, memberID, bookID, now, now.Add(model.LoanPeriod))
	if err != nil {
		return model.Loan{}, err
	}
	s.log.Info("book borrowed",
		zap.String("loanId", loan.ID), zap.String("memberId", memberID), zap.String("bookId", bookID))

	s.events.PublishLoanEvent(model.LoanEvent{
		Type:     model.LoanEventBorrowed,
		LoanID:   loan.ID,
		MemberID: memberID,
		BookID:   bookID,
		At:       now,
	})
	return loan, nil
}

// ReturnBook closes a loan and gives the copy back. Members may only
// return their own loans; staff and admins may return any.
func (s *Service) ReturnBook(ctx context.Context, requester model.User, loanID string) (model.Loan, error) {
	if requester.Role == model.RoleMember {
		loan, err := s.repo.GetLoan(ctx, loanID)
		if err != nil {
			return model.Loan{}, err
		}
		if loan.MemberID != requester.ID {
			// someone else's loan looks like no loan at all
			return model.Loan{}, errs.ErrNotFound
		}
	}

	now := s.now().UTC()
	loan, err := s.repo.ReturnLoan(ctx, loanID, now)
	if err != nil {
		if errors.Is(err, errs.ErrInvariantViolation) {
			s.log.Error("return would exceed total copies", zap.String("loanId", loanID))
		}
		return model.Loan{}, err
	}
	s.log.Info("book returned", zap.String("loanId", loan.ID), zap.String("bookId", loan.BookID))

	s.events.PublishLoanEvent(model.LoanEvent{
		Type:     model.LoanEventReturned,
		LoanID:   loan.ID,
		MemberID: loan.MemberID,
		BookID:   loan.BookID,
		At:       now,
	})
	return loan, nil
}

// OverdueStatus is the derived view status of a loan at a point in
// time. Stored status never holds "overdue".
func OverdueStatus(loan model.Loan, now time.Time) model.LoanStatus {
	return loan.EffectiveStatus(now)
}

func (s *Service) ListMemberLoans(ctx context.Context, memberID string) ([]model.Loan, error) {
	loans, err := s.repo.ListLoansByMember(ctx, memberID)
	if err != nil {
		return nil, err
	}
	return s.withDerivedStatus(loans), nil
}

func (s *Service) ListLoans(ctx context.Context) ([]model.Loan, error) {
	loans, err := s.repo.ListLoans(ctx)
	if err != nil {
		return nil, err
	}
	return s.withDerivedStatus(loans), nil
}

func (s *Service) withDerivedStatus(loans []model.Loan) []model.Loan {
	now := s.now()
	for i := range loans {
		loans[i].Status = loans[i].EffectiveStatus(now)
	}
	return loans
}
