package repository_test

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/bookhaven/library-service/internal/errs"
	"github.com/bookhaven/library-service/internal/model"
)

func bookRows(ids ...string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "title", "isbn", "description", "genre", "publication_year",
		"cover_image", "publisher_id", "publisher_name", "total_copies", "available_copies", "rating"})
	for _, id := range ids {
		rows.AddRow(id, "title "+id, "isbn-"+id, "", "Fantasy", 2001, "", "p1", "Pub", 3, 2, nil)
	}
	return rows
}

func authorRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"book_id", "id", "name", "bio"})
}

func TestRepository_ListBooks(t *testing.T) {
	t.Parallel()

	t.Run("filters combine conjunctively", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMockRepo(t)

		avail := true
		mock.ExpectQuery(regexp.QuoteMeta("b.genre = $1 AND b.available_copies > $2")).
			WithArgs("Fantasy", 0).
			WillReturnRows(bookRows("b1", "b2"))
		mock.ExpectQuery("FROM book_authors").
			WithArgs("b1", "b2").
			WillReturnRows(authorRows())
		mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM books b")).
			WithArgs("Fantasy", 0).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

		list, err := repo.ListBooks(context.Background(), model.BookFilter{
			Genre:         "Fantasy",
			AvailableOnly: &avail,
		})
		require.NoError(t, err)
		require.Len(t, list.Items, 2)
		require.Equal(t, 2, list.TotalElements)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("available filter can also mean none left", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMockRepo(t)

		avail := false
		mock.ExpectQuery(regexp.QuoteMeta("b.available_copies = $1")).
			WithArgs(0).
			WillReturnRows(bookRows())
		mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM books b")).
			WithArgs(0).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		list, err := repo.ListBooks(context.Background(), model.BookFilter{AvailableOnly: &avail})
		require.NoError(t, err)
		require.Empty(t, list.Items)
		require.Zero(t, list.TotalElements)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("text matches title or isbn", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(regexp.QuoteMeta("b.title ILIKE $1 OR b.isbn ILIKE $2")).
			WithArgs("%dune%", "%dune%").
			WillReturnRows(bookRows("b1"))
		mock.ExpectQuery("FROM book_authors").
			WithArgs("b1").
			WillReturnRows(authorRows())
		mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM books b")).
			WithArgs("%dune%", "%dune%").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		list, err := repo.ListBooks(context.Background(), model.BookFilter{Text: "dune"})
		require.NoError(t, err)
		require.Len(t, list.Items, 1)
		require.Equal(t, 1, list.TotalElements)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("total counts beyond the requested page", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMockRepo(t)

		mock.ExpectQuery(regexp.QuoteMeta("ORDER BY b.id LIMIT 2 OFFSET 0")).
			WillReturnRows(bookRows("b1", "b2"))
		mock.ExpectQuery("FROM book_authors").
			WithArgs("b1", "b2").
			WillReturnRows(authorRows())
		mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM books b")).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

		list, err := repo.ListBooks(context.Background(), model.BookFilter{Page: 1, Size: 2})
		require.NoError(t, err)
		require.Len(t, list.Items, 2)
		require.Equal(t, 7, list.TotalElements)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepository_DeleteBook(t *testing.T) {
	t.Parallel()

	// The guard must block on any loan row, not just active ones: loan
	// history keeps its book_id reference after return.
	guard := regexp.QuoteMeta("not exists (select 1 from loans l where l.book_id = b.id)")

	t.Run("deletes when never borrowed", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMockRepo(t)

		mock.ExpectExec(guard).
			WithArgs("b1").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.DeleteBook(context.Background(), "b1"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("refuses when loan history exists", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMockRepo(t)

		mock.ExpectExec(guard).
			WithArgs("b1").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("FROM books b").
			WithArgs("b1").
			WillReturnRows(bookRows("b1"))
		mock.ExpectQuery("FROM book_authors").
			WithArgs("b1").
			WillReturnRows(authorRows())

		err := repo.DeleteBook(context.Background(), "b1")
		require.ErrorIs(t, err, errs.ErrBookOnLoan)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown book reports not found", func(t *testing.T) {
		t.Parallel()
		repo, mock := newMockRepo(t)

		mock.ExpectExec("delete from books").
			WithArgs("nope").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("FROM books b").
			WithArgs("nope").
			WillReturnRows(bookRows())

		err := repo.DeleteBook(context.Background(), "nope")
		require.ErrorIs(t, err, errs.ErrNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}
