package model

import (
	"time"
)

type Role string

const (
	RoleMember Role = "member"
	RoleStaff  Role = "staff"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleMember, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

type Permissions struct {
	CanManageBooks bool `json:"canManageBooks"`
	CanManageUsers bool `json:"canManageUsers"`
	CanBorrowBooks bool `json:"canBorrowBooks"`
}

// Permissions is derived from the role alone. Nothing else in the
// system stores or edits permissions.
func (r Role) Permissions() Permissions {
	switch r {
	case RoleAdmin:
		return Permissions{CanManageBooks: true, CanManageUsers: true, CanBorrowBooks: true}
	case RoleStaff:
		return Permissions{CanManageBooks: true, CanBorrowBooks: true}
	default:
		return Permissions{CanBorrowBooks: true}
	}
}

type User struct {
	ID                  string    `json:"id" db:"id"`
	Name                string    `json:"name" db:"name"`
	Email               string    `json:"email" db:"email"`
	Role                Role      `json:"role" db:"role"`
	MembershipType      string    `json:"membershipType" db:"membership_type"`
	MembershipStartDate time.Time `json:"membershipStartDate" db:"membership_start_date"`
}

// Credentials is the identity record: what the user authenticates
// with, kept apart from the application profile. An identity without a
// profile row (a failed registration's leftover) never authenticates.
type Credentials struct {
	UserID            string `db:"user_id"`
	Email             string `db:"email"`
	PasswordHash      string `db:"password_hash"`
	SessionGeneration int64  `db:"session_generation"`
}

func (u User) Permissions() Permissions {
	return u.Role.Permissions()
}

type SessionState string

const (
	SessionLoading       SessionState = "loading"
	SessionAnonymous     SessionState = "anonymous"
	SessionAuthenticated SessionState = "authenticated"
)

// Session is the resolved principal for one request. User is non-nil
// only in the authenticated state.
type Session struct {
	State SessionState
	User  *User
}

func AnonymousSession() Session {
	return Session{State: SessionAnonymous}
}

func AuthenticatedSession(u User) Session {
	return Session{State: SessionAuthenticated, User: &u}
}

type Publisher struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

type Author struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
	Bio  string `json:"bio,omitempty" db:"bio"`
}

type Book struct {
	ID              string   `json:"id" db:"id"`
	Title           string   `json:"title" db:"title"`
	ISBN            string   `json:"isbn" db:"isbn"`
	Description     string   `json:"description" db:"description"`
	Genre           string   `json:"genre" db:"genre"`
	PublicationYear int      `json:"publicationYear" db:"publication_year"`
	CoverImage      string   `json:"coverImage" db:"cover_image"`
	PublisherID     string   `json:"publisherId" db:"publisher_id"`
	PublisherName   string   `json:"publisher" db:"publisher_name"`
	Authors         []Author `json:"authors" db:"-"`
	TotalCopies     int      `json:"totalCopies" db:"total_copies"`
	AvailableCopies int      `json:"availableCopies" db:"available_copies"`
	Rating          *float64 `json:"rating,omitempty" db:"rating"`
}

func (b Book) Available() bool {
	return b.AvailableCopies > 0
}

type LoanStatus string

const (
	StatusActive   LoanStatus = "active"
	StatusOverdue  LoanStatus = "overdue"
	StatusReturned LoanStatus = "returned"
)

// LoanPeriod is the fixed due-date offset applied at borrow time.
const LoanPeriod = 14 * 24 * time.Hour

type Loan struct {
	ID         string     `json:"id" db:"id"`
	MemberID   string     `json:"memberId" db:"member_id"`
	BookID     string     `json:"bookId" db:"book_id"`
	BookTitle  string     `json:"bookTitle,omitempty" db:"book_title"`
	MemberName string     `json:"memberName,omitempty" db:"member_name"`
	LoanDate   time.Time  `json:"loanDate" db:"loan_date"`
	DueDate    time.Time  `json:"dueDate" db:"due_date"`
	ReturnDate *time.Time `json:"returnDate,omitempty" db:"return_date"`
	Status     LoanStatus `json:"status" db:"status"`
}

// EffectiveStatus derives the view status at a point in time. Overdue
// is never persisted: stored status is only ever active or returned.
func (l Loan) EffectiveStatus(now time.Time) LoanStatus {
	if l.Status == StatusActive && l.DueDate.Before(now) {
		return StatusOverdue
	}
	return l.Status
}

type Paging struct {
	Page          int `json:"page"`
	PageSize      int `json:"pageSize"`
	TotalElements int `json:"totalElements"`
}

type ListBooks struct {
	Paging `json:",inline"`
	Items  []Book `json:"items"`
}

// BookFilter fields are conjunctive; zero values impose no constraint
// except AvailableOnly, which is tri-state.
type BookFilter struct {
	Text          string `query:"text"`
	Genre         string `query:"genre"`
	AvailableOnly *bool  `query:"availableOnly"`
	Year          *int   `query:"year"`
	Page          int    `query:"page"`
	Size          int    `query:"size"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	// Role is accepted on the wire but ignored: self-registration
	// always produces a member.
	Role string `json:"role,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int    `json:"expiresIn"`
	User        User   `json:"user"`
}

type Profile struct {
	User        `json:",inline"`
	Permissions Permissions `json:"permissions"`
}

type BorrowRequest struct {
	BookID string `json:"bookId" validate:"required,uuid"`
}

type CreateBookRequest struct {
	Title           string   `json:"title" validate:"required"`
	ISBN            string   `json:"isbn" validate:"required"`
	Description     string   `json:"description"`
	Genre           string   `json:"genre" validate:"required"`
	PublicationYear int      `json:"publicationYear" validate:"required,gte=0"`
	CoverImage      string   `json:"coverImage"`
	PublisherID     string   `json:"publisherId" validate:"required,uuid"`
	AuthorIDs       []string `json:"authorIds" validate:"required,min=1,dive,uuid"`
	TotalCopies     int      `json:"totalCopies" validate:"required,gte=0"`
	Rating          *float64 `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
}

type UpdateBookRequest struct {
	Title           *string  `json:"title,omitempty"`
	Description     *string  `json:"description,omitempty"`
	Genre           *string  `json:"genre,omitempty"`
	PublicationYear *int     `json:"publicationYear,omitempty"`
	CoverImage      *string  `json:"coverImage,omitempty"`
	Rating          *float64 `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	// TotalCopiesDelta adjusts total and available copies together,
	// through the same guarded updates the loan lifecycle uses.
	TotalCopiesDelta *int `json:"totalCopiesDelta,omitempty"`
}

type ChangeRoleRequest struct {
	Role Role `json:"role" validate:"required,oneof=member staff admin"`
}

type LoanEventType string

const (
	LoanEventBorrowed LoanEventType = "borrowed"
	LoanEventReturned LoanEventType = "returned"
)

// LoanEvent is published to the loan-events topic for downstream
// consumers (stats, the overdue sweeper).
type LoanEvent struct {
	Type     LoanEventType `json:"type"`
	LoanID   string        `json:"loanId"`
	MemberID string        `json:"memberId"`
	BookID   string        `json:"bookId"`
	At       time.Time     `json:"at"`
}
