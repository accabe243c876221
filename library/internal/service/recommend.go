package service

import (
	"context"

	"github.com/bookhaven/library-service/internal/model"
)

const defaultRecommendCount = 4

// Recommend builds a two-tier list: books in genres the member has
// borrowed before (any loan status), available and not yet borrowed by
// them, best rated first; padded with globally popular available books
// until count is reached or the catalog runs out. No history skips
// straight to the popular tier. Deliberately a fixed rule, not a
// model: callers rely on it being reproducible.
func (s *Service) Recommend(ctx context.Context, memberID string, count int) ([]model.Book, error) {
	if count <= 0 {
		count = defaultRecommendCount
	}

	borrowed, err := s.repo.BorrowedBookIDs(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if len(borrowed) == 0 {
		return s.repo.PopularBooks(ctx, nil, count)
	}

	genres, err := s.repo.GenresBorrowedBy(ctx, memberID)
	if err != nil {
		return nil, err
	}

	var picks []model.Book
	if len(genres) > 0 {
		picks, err = s.repo.BooksByGenres(ctx, genres, borrowed, count)
		if err != nil {
			return nil, err
		}
	}
	if len(picks) >= count {
		return picks[:count], nil
	}

	exclude := make([]string, 0, len(borrowed)+len(picks))
	exclude = append(exclude, borrowed...)
	for _, b := range picks {
		exclude = append(exclude, b.ID)
	}
	popular, err := s.repo.PopularBooks(ctx, exclude, count-len(picks))
	if err != nil {
		return nil, err
	}
	return append(picks, popular...), nil
}
