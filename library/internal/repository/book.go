package repository

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bookhaven/library-service/internal/errs"
	"github.com/bookhaven/library-service/internal/model"
)

const bookColumns = `b.id, b.title, b.isbn, b.description, b.genre, b.publication_year, b.cover_image,
b.publisher_id, p.name as publisher_name, b.total_copies, b.available_copies, b.rating`

func (r *repository) selectBooks() sq.SelectBuilder {
	return qb.Select(bookColumns).
		From(booksTableName + " b").
		Join(fmt.Sprintf("%s p on p.id = b.publisher_id", publishersTableName))
}

func applyBookFilter(q sq.SelectBuilder, filter model.BookFilter) sq.SelectBuilder {
	if filter.Text != "" {
		pattern := "%" + filter.Text + "%"
		q = q.Where(sq.Or{
			sq.ILike{"b.title": pattern},
			sq.ILike{"b.isbn": pattern},
		})
	}
	if filter.Genre != "" {
		q = q.Where(sq.Eq{"b.genre": filter.Genre})
	}
	if filter.AvailableOnly != nil {
		if *filter.AvailableOnly {
			q = q.Where(sq.Gt{"b.available_copies": 0})
		} else {
			q = q.Where(sq.Eq{"b.available_copies": 0})
		}
	}
	if filter.Year != nil {
		q = q.Where(sq.Eq{"b.publication_year": *filter.Year})
	}
	return q
}

func (r *repository) ListBooks(ctx context.Context, filter model.BookFilter) (model.ListBooks, error) {
	q := applyBookFilter(r.selectBooks(), filter).OrderBy("b.id")
	if filter.Page != 0 && filter.Size != 0 {
		q = q.Limit(uint64(filter.Size)).Offset(uint64((filter.Page - 1) * filter.Size))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return model.ListBooks{}, err
	}
	r.log.Debug("ListBooks", zap.String("query", query), zap.Any("args", args))

	var books []model.Book
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return model.ListBooks{}, err
	}
	if err := r.attachAuthors(ctx, books); err != nil {
		return model.ListBooks{}, err
	}

	total, err := r.countBooks(ctx, filter)
	if err != nil {
		return model.ListBooks{}, err
	}

	return model.ListBooks{
		Paging: model.Paging{
			Page:          filter.Page,
			PageSize:      filter.Size,
			TotalElements: total,
		},
		Items: books,
	}, nil
}

func (r *repository) countBooks(ctx context.Context, filter model.BookFilter) (int, error) {
	query, args, err := applyBookFilter(
		qb.Select("count(*)").From(booksTableName+" b"), filter).ToSql()
	if err != nil {
		return 0, err
	}
	var total int
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repository) GetBook(ctx context.Context, id string) (model.Book, error) {
	query, args, err := r.selectBooks().
		Where(sq.Eq{"b.id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	var book model.Book
	if err := r.db.GetContext(ctx, &book, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		return model.Book{}, err
	}
	books := []model.Book{book}
	if err := r.attachAuthors(ctx, books); err != nil {
		return model.Book{}, err
	}
	return books[0], nil
}

func (r *repository) CreateBook(ctx context.Context, book model.Book, authorIDs []string) (model.Book, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Book{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	q, args, err := qb.Insert(booksTableName).
		Columns("id", "title", "isbn", "description", "genre", "publication_year", "cover_image",
			"publisher_id", "total_copies", "available_copies", "rating").
		Values(book.ID, book.Title, book.ISBN, book.Description, book.Genre, book.PublicationYear,
			book.CoverImage, book.PublisherID, book.TotalCopies, book.TotalCopies, book.Rating).
		ToSql()
	if err != nil {
		return model.Book{}, err
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		r.log.Error("CreateBook", zap.String("q", q), zap.Any("args", args))
		return model.Book{}, err
	}

	ins := qb.Insert(bookAuthorsTableName).Columns("book_id", "author_id", "position")
	for i, authorID := range authorIDs {
		ins = ins.Values(book.ID, authorID, i)
	}
	q, args, err = ins.ToSql()
	if err != nil {
		return model.Book{}, err
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return model.Book{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Book{}, err
	}
	return r.GetBook(ctx, book.ID)
}

func (r *repository) UpdateBook(ctx context.Context, id string, req model.UpdateBookRequest) (model.Book, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Book{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	upd := qb.Update(booksTableName).Where(sq.Eq{"id": id})
	set := false
	if req.Title != nil {
		upd, set = upd.Set("title", *req.Title), true
	}
	if req.Description != nil {
		upd, set = upd.Set("description", *req.Description), true
	}
	if req.Genre != nil {
		upd, set = upd.Set("genre", *req.Genre), true
	}
	if req.PublicationYear != nil {
		upd, set = upd.Set("publication_year", *req.PublicationYear), true
	}
	if req.CoverImage != nil {
		upd, set = upd.Set("cover_image", *req.CoverImage), true
	}
	if req.Rating != nil {
		upd, set = upd.Set("rating", *req.Rating), true
	}
	if set {
		q, args, err := upd.ToSql()
		if err != nil {
			return model.Book{}, err
		}
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return model.Book{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return model.Book{}, errs.ErrNotFound
		}
	}

	// Copy-count edits shift total and available together so the
	// availability invariant is preserved by construction. The guard
	// refuses a shrink below the number of copies currently on loan.
	if req.TotalCopiesDelta != nil && *req.TotalCopiesDelta != 0 {
		q := `
update books
	set total_copies = total_copies + $2,
	    available_copies = available_copies + $2
where id = $1 and total_copies + $2 >= 0 and available_copies + $2 >= 0`
		res, err := tx.ExecContext(ctx, q, id, *req.TotalCopiesDelta)
		if err != nil {
			return model.Book{}, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if !set {
				if _, err := r.GetBook(ctx, id); errors.Is(err, errs.ErrNotFound) {
					return model.Book{}, errs.ErrNotFound
				}
			}
			return model.Book{}, errs.ErrInvariantViolation
		}
	}

	if err := tx.Commit(); err != nil {
		return model.Book{}, err
	}
	return r.GetBook(ctx, id)
}

func (r *repository) DeleteBook(ctx context.Context, id string) error {
	// loans.book_id has no on-delete action; any loan row, active or
	// returned, blocks the delete.
	q := `
delete from books b
where b.id = $1
	and not exists (select 1 from loans l where l.book_id = b.id)`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetBook(ctx, id); errors.Is(err, errs.ErrNotFound) {
			return errs.ErrNotFound
		}
		return errs.ErrBookOnLoan
	}
	return nil
}

func (r *repository) PopularBooks(ctx context.Context, exclude []string, limit int) ([]model.Book, error) {
	q := r.selectBooks().
		Where(sq.Gt{"b.available_copies": 0}).
		OrderBy("b.rating desc nulls last", "b.id").
		Limit(uint64(limit))
	if len(exclude) > 0 {
		q = q.Where(sq.NotEq{"b.id": exclude})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var books []model.Book
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, err
	}
	if err := r.attachAuthors(ctx, books); err != nil {
		return nil, err
	}
	return books, nil
}

func (r *repository) BooksByGenres(ctx context.Context, genres, exclude []string, limit int) ([]model.Book, error) {
	q := r.selectBooks().
		Where(sq.Eq{"b.genre": genres}).
		Where(sq.Gt{"b.available_copies": 0}).
		OrderBy("b.rating desc nulls last", "b.id").
		Limit(uint64(limit))
	if len(exclude) > 0 {
		q = q.Where(sq.NotEq{"b.id": exclude})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	var books []model.Book
	if err := r.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, err
	}
	if err := r.attachAuthors(ctx, books); err != nil {
		return nil, err
	}
	return books, nil
}

func (r *repository) GenresBorrowedBy(ctx context.Context, memberID string) ([]string, error) {
	q := `
select distinct b.genre from loans l
join books b on b.id = l.book_id
where l.member_id = $1 and b.genre <> ''
order by b.genre`
	var genres []string
	if err := r.db.SelectContext(ctx, &genres, q, memberID); err != nil {
		return nil, err
	}
	return genres, nil
}

func (r *repository) BorrowedBookIDs(ctx context.Context, memberID string) ([]string, error) {
	q := `select distinct book_id from loans where member_id = $1`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, q, memberID); err != nil {
		return nil, err
	}
	return ids, nil
}

type bookAuthorRow struct {
	BookID string `db:"book_id"`
	ID     string `db:"id"`
	Name   string `db:"name"`
	Bio    string `db:"bio"`
}

func (r *repository) attachAuthors(ctx context.Context, books []model.Book) error {
	if len(books) == 0 {
		return nil
	}
	ids := make([]string, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.ID)
	}
	q, args, err := qb.Select("ba.book_id", "a.id", "a.name", "a.bio").
		From(bookAuthorsTableName + " ba").
		Join(fmt.Sprintf("%s a on a.id = ba.author_id", authorsTableName)).
		Where(sq.Eq{"ba.book_id": ids}).
		OrderBy("ba.book_id", "ba.position").
		ToSql()
	if err != nil {
		return err
	}
	var rows []bookAuthorRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return err
	}
	byBook := make(map[string][]model.Author, len(books))
	for _, row := range rows {
		byBook[row.BookID] = append(byBook[row.BookID], model.Author{ID: row.ID, Name: row.Name, Bio: row.Bio})
	}
	for i := range books {
		books[i].Authors = byBook[books[i].ID]
	}
	return nil
}
