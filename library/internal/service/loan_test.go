package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bookhaven/library-service/internal/errs"
	"github.com/bookhaven/library-service/internal/model"
	mock_repository "github.com/bookhaven/library-service/library/internal/repository/mocks"
	"github.com/bookhaven/library-service/library/internal/service"
)

type eventSink struct {
	events []model.LoanEvent
}

func (s *eventSink) PublishLoanEvent(ev model.LoanEvent) {
	s.events = append(s.events, ev)
}

var fixedNow = time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

func TestService_BorrowBook(t *testing.T) {
	t.Parallel()

	member := model.User{ID: "u1", Role: model.RoleMember}

	t.Run("due date is loan date plus loan period", func(t *testing.T) {
		t.Parallel()
		c := gomock.NewController(t)
		defer c.Finish()
		repo := mock_repository.NewMockRepository(c)
		sink := &eventSink{}
		svc := service.NewService(repo, sink, zap.NewExample()).WithClock(func() time.Time { return fixedNow })

		repo.EXPECT().GetUser(gomock.Any(), "u1").Return(member, nil)
		repo.EXPECT().CreateLoan(gomock.Any(), "u1", "b1", fixedNow, fixedNow.Add(14*24*time.Hour)).
			Return(model.Loan{
				ID:       "l1",
				MemberID: "u1",
				BookID:   "b1",
				LoanDate: fixedNow,
				DueDate:  fixedNow.Add(14 * 24 * time.Hour),
				Status:   model.StatusActive,
			}, nil)

		loan, err := svc.BorrowBook(context.Background(), "u1", "b1")
		require.NoError(t, err)
		require.Equal(t, model.StatusActive, loan.Status)
		require.Equal(t, loan.LoanDate.Add(14*24*time.Hour), loan.DueDate)

		require.Len(t, sink.events, 1)
		require.Equal(t, model.LoanEventBorrowed, sink.events[0].Type)
		require.Equal(t, "l1", sink.events[0].LoanID)
	})

	t.Run("no copies left", func(t *testing.T) {
		t.Parallel()
		c := gomock.NewController(t)
		defer c.Finish()
		repo := mock_repository.NewMockRepository(c)
		sink := &eventSink{}
		svc := service.NewService(repo, sink, zap.NewExample())

		repo.EXPECT().GetUser(gomock.Any(), "u1").Return(member, nil)
		repo.EXPECT().CreateLoan(gomock.Any(), "u1", "b1", gomock.Any(), gomock.Any()).
			Return(model.Loan{}, errs.ErrUnavailable)

		_, err := svc.BorrowBook(context.Background(), "u1", "b1")
		require.ErrorIs(t, err, errs.ErrUnavailable)
		require.Empty(t, sink.events)
	})

	t.Run("duplicate active loan", func(t *testing.T) {
		t.Parallel()
		c := gomock.NewController(t)
		defer c.Finish()
		repo := mock_repository.NewMockRepository(c)
		svc := service.NewService(repo, nil, zap.NewExample())

		repo.EXPECT().GetUser(gomock.Any(), "u1").Return(member, nil)
		repo.EXPECT().CreateLoan(gomock.Any(), "u1", "b1", gomock.Any(), gomock.Any()).
			Return(model.Loan{}, errs.ErrAlreadyBorrowed)

		_, err := svc.BorrowBook(context.Background(), "u1", "b1")
		require.ErrorIs(t, err, errs.ErrAlreadyBorrowed)
	})
}

func TestService_ReturnBook(t *testing.T) {
	t.Parallel()

	member := model.User{ID: "u1", Role: model.RoleMember}
	staff := model.User{ID: "s1", Role: model.RoleStaff}
	ret := fixedNow

	t.Run("member returns own loan", func(t *testing.T) {
		t.Parallel()
		c := gomock.NewController(t)
		defer c.Finish()
		repo := mock_repository.NewMockRepository(c)
		sink := &eventSink{}
		svc := service.NewService(repo, sink, zap.NewExample()).WithClock(func() time.Time { return fixedNow })

		repo.EXPECT().GetLoan(gomock.Any(), "l1").
			Return(model.Loan{ID: "l1", MemberID: "u1", BookID: "b1", Status: model.StatusActive}, nil)
		repo.EXPECT().ReturnLoan(gomock.Any(), "l1", fixedNow).
			Return(model.Loan{ID: "l1", MemberID: "u1", BookID: "b1", Status: model.StatusReturned, ReturnDate: &ret}, nil)

		loan, err := svc.ReturnBook(context.Background(), member, "l1")
		require.NoError(t, err)
		require.Equal(t, model.StatusReturned, loan.Status)
		require.NotNil(t, loan.ReturnDate)

		require.Len(t, sink.events, 1)
		require.Equal(t, model.LoanEventReturned, sink.events[0].Type)
	})

	t.Run("member cannot return another member's loan", func(t *testing.T) {
		t.Parallel()
		c := gomock.NewController(t)
		defer c.Finish()
		repo := mock_repository.NewMockRepository(c)
		svc := service.NewService(repo, nil, zap.NewExample())

		repo.EXPECT().GetLoan(gomock.Any(), "l1").
			Return(model.Loan{ID: "l1", MemberID: "someone-else", Status: model.StatusActive}, nil)

		_, err := svc.ReturnBook(context.Background(), member, "l1")
		require.ErrorIs(t, err, errs.ErrNotFound)
	})

	t.Run("staff returns any loan without ownership lookup", func(t *testing.T) {
		t.Parallel()
		c := gomock.NewController(t)
		defer c.Finish()
		repo := mock_repository.NewMockRepository(c)
		svc := service.NewService(repo, nil, zap.NewExample()).WithClock(func() time.Time { return fixedNow })

		repo.EXPECT().ReturnLoan(gomock.Any(), "l1", fixedNow).
			Return(model.Loan{ID: "l1", MemberID: "u1", BookID: "b1", Status: model.StatusReturned, ReturnDate: &ret}, nil)

		_, err := svc.ReturnBook(context.Background(), staff, "l1")
		require.NoError(t, err)
	})

	t.Run("second return fails with already returned", func(t *testing.T) {
		t.Parallel()
		c := gomock.NewController(t)
		defer c.Finish()
		repo := mock_repository.NewMockRepository(c)
		sink := &eventSink{}
		svc := service.NewService(repo, sink, zap.NewExample())

		repo.EXPECT().ReturnLoan(gomock.Any(), "l1", gomock.Any()).
			Return(model.Loan{}, errs.ErrAlreadyReturned)

		_, err := svc.ReturnBook(context.Background(), staff, "l1")
		require.ErrorIs(t, err, errs.ErrAlreadyReturned)
		require.Empty(t, sink.events)
	})
}

func TestService_ListMemberLoans_DerivesOverdue(t *testing.T) {
	t.Parallel()
	c := gomock.NewController(t)
	defer c.Finish()
	repo := mock_repository.NewMockRepository(c)
	svc := service.NewService(repo, nil, zap.NewExample()).WithClock(func() time.Time { return fixedNow })

	repo.EXPECT().ListLoansByMember(gomock.Any(), "u1").Return([]model.Loan{
		{ID: "l1", Status: model.StatusActive, DueDate: fixedNow.Add(time.Hour)},
		{ID: "l2", Status: model.StatusActive, DueDate: fixedNow.Add(-time.Hour)},
		{ID: "l3", Status: model.StatusReturned, DueDate: fixedNow.Add(-time.Hour)},
	}, nil)

	loans, err := svc.ListMemberLoans(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, model.StatusActive, loans[0].Status)
	require.Equal(t, model.StatusOverdue, loans[1].Status)
	require.Equal(t, model.StatusReturned, loans[2].Status)
}

func TestOverdueStatus(t *testing.T) {
	t.Parallel()

	due := fixedNow.Add(24 * time.Hour)
	active := model.Loan{Status: model.StatusActive, DueDate: due}

	require.Equal(t, model.StatusActive, service.OverdueStatus(active, due.Add(-time.Minute)))
	require.Equal(t, model.StatusOverdue, service.OverdueStatus(active, due.Add(time.Minute)))

	returned := model.Loan{Status: model.StatusReturned, DueDate: due}
	require.Equal(t, model.StatusReturned, service.OverdueStatus(returned, due.Add(time.Minute)))
}
