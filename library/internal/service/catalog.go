package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/bookhaven/library-service/internal/model"
)

func (s *Service) SearchBooks(ctx context.Context, filter model.BookFilter) (model.ListBooks, error) {
	return s.repo.ListBooks(ctx, filter)
}

func (s *Service) GetBook(ctx context.Context, id string) (model.Book, error) {
	return s.repo.GetBook(ctx, id)
}

func (s *Service) PopularBooks(ctx context.Context, count int) ([]model.Book, error) {
	if count <= 0 {
		count = defaultRecommendCount
	}
	return s.repo.PopularBooks(ctx, nil, count)
}

func (s *Service) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	book := model.Book{
		ID:              uuid.NewString(),
		Title:           req.Title,
		ISBN:            req.ISBN,
		Description:     req.Description,
		Genre:           req.Genre,
		PublicationYear: req.PublicationYear,
		CoverImage:      req.CoverImage,
		PublisherID:     req.PublisherID,
		TotalCopies:     req.TotalCopies,
		AvailableCopies: req.TotalCopies,
		Rating:          req.Rating,
	}
	return s.repo.CreateBook(ctx, book, req.AuthorIDs)
}

func (s *Service) UpdateBook(ctx context.Context, id string, req model.UpdateBookRequest) (model.Book, error) {
	return s.repo.UpdateBook(ctx, id, req)
}

func (s *Service) DeleteBook(ctx context.Context, id string) error {
	return s.repo.DeleteBook(ctx, id)
}
