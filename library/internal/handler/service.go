package handler

import (
	"context"

	"github.com/bookhaven/library-service/internal/model"
	"github.com/bookhaven/library-service/library/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type LibraryService interface {
	Register(ctx context.Context, req model.RegisterRequest) (model.User, error)
	Login(ctx context.Context, email, password string) (model.LoginResponse, error)
	RestoreSession(ctx context.Context, token string) (model.Session, error)
	Logout(ctx context.Context, userID string)
	GetProfile(ctx context.Context, userID string) (model.Profile, error)
	UpdateProfile(ctx context.Context, userID string, name, membershipType *string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	ChangeUserRole(ctx context.Context, userID string, role model.Role) (model.User, error)

	SearchBooks(ctx context.Context, filter model.BookFilter) (model.ListBooks, error)
	GetBook(ctx context.Context, id string) (model.Book, error)
	PopularBooks(ctx context.Context, count int) ([]model.Book, error)
	Recommend(ctx context.Context, memberID string, count int) ([]model.Book, error)
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	UpdateBook(ctx context.Context, id string, req model.UpdateBookRequest) (model.Book, error)
	DeleteBook(ctx context.Context, id string) error

	BorrowBook(ctx context.Context, memberID, bookID string) (model.Loan, error)
	ReturnBook(ctx context.Context, requester model.User, loanID string) (model.Loan, error)
	ListMemberLoans(ctx context.Context, memberID string) ([]model.Loan, error)
	ListLoans(ctx context.Context) ([]model.Loan, error)
}

var _ LibraryService = (*service.Service)(nil)
