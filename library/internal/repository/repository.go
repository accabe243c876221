package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/bookhaven/library-service/internal/model"
)

//go:generate go run github.com/golang/mock/mockgen -source=repository.go -destination=mocks/mock.go

type Repository interface {
	// identities
	CreateIdentity(ctx context.Context, cred model.Credentials) error
	GetIdentityByEmail(ctx context.Context, email string) (model.Credentials, error)
	GetIdentity(ctx context.Context, userID string) (model.Credentials, error)
	BumpSessionGeneration(ctx context.Context, userID string) error

	// users
	CreateUser(ctx context.Context, user model.User) (model.User, error)
	GetUser(ctx context.Context, id string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	UpdateUserRole(ctx context.Context, id string, role model.Role) (model.User, error)
	UpdateUserProfile(ctx context.Context, id string, name, membershipType *string) (model.User, error)

	// books
	ListBooks(ctx context.Context, filter model.BookFilter) (model.ListBooks, error)
	GetBook(ctx context.Context, id string) (model.Book, error)
	CreateBook(ctx context.Context, book model.Book, authorIDs []string) (model.Book, error)
	UpdateBook(ctx context.Context, id string, req model.UpdateBookRequest) (model.Book, error)
	DeleteBook(ctx context.Context, id string) error
	PopularBooks(ctx context.Context, exclude []string, limit int) ([]model.Book, error)
	GenresBorrowedBy(ctx context.Context, memberID string) ([]string, error)
	BorrowedBookIDs(ctx context.Context, memberID string) ([]string, error)
	BooksByGenres(ctx context.Context, genres, exclude []string, limit int) ([]model.Book, error)

	// loans
	CreateLoan(ctx context.Context, memberID, bookID string, loanDate, dueDate time.Time) (model.Loan, error)
	ReturnLoan(ctx context.Context, loanID string, returnDate time.Time) (model.Loan, error)
	GetLoan(ctx context.Context, id string) (model.Loan, error)
	ListLoansByMember(ctx context.Context, memberID string) ([]model.Loan, error)
	ListLoans(ctx context.Context) ([]model.Loan, error)
}

type repository struct {
	db  *sqlx.DB
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		log: log.Named("repo"),
	}, nil
}

const (
	usersTableName       = `users`
	credentialsTableName = `credentials`
	booksTableName       = `books`
	authorsTableName     = `authors`
	publishersTableName  = `publishers`
	bookAuthorsTableName = `book_authors`
	loansTableName       = `loans`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
