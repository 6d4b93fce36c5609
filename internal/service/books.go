package service

import (
	"context"

	"github.com/libcirc/circulation-service/internal/errs"
	"github.com/libcirc/circulation-service/internal/model"
	"github.com/libcirc/circulation-service/pkg/validate"
)

// MetadataClient looks up book metadata by ISBN on an external catalog. Calls
// are time-bounded by the implementation.
type MetadataClient interface {
	FetchByISBN(ctx context.Context, isbn string) (model.CreateBookRequest, error)
}

func (s *Service) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	if req.Title == "" {
		return model.Book{}, errs.Validation("title", "required")
	}
	return s.repo.CreateBook(ctx, model.Book{
		Title:           req.Title,
		Author:          req.Author,
		PublicationYear: req.PublicationYear,
		Genre:           req.Genre,
		ISBN:            req.ISBN,
	})
}

// ImportBookByISBN creates a book from external catalog metadata.
func (s *Service) ImportBookByISBN(ctx context.Context, isbn string) (model.Book, error) {
	if s.metadata == nil {
		return model.Book{}, errs.Precondition("metadata lookup is not configured")
	}
	req, err := s.metadata.FetchByISBN(ctx, isbn)
	if err != nil {
		return model.Book{}, err
	}
	return s.CreateBook(ctx, req)
}

func (s *Service) GetBook(ctx context.Context, id int64) (model.BookWithAvailability, error) {
	book, err := s.repo.GetBook(ctx, id)
	if err != nil {
		return model.BookWithAvailability{}, err
	}
	avail, err := s.repo.Availability(ctx, []int64{id})
	if err != nil {
		return model.BookWithAvailability{}, err
	}
	return model.BookWithAvailability{Book: book, Availability: avail[id]}, nil
}

// ListBooks pages through the catalog; availability is resolved for the whole
// page with a single batched oracle query.
func (s *Service) ListBooks(ctx context.Context, page, size int) (model.ListBooks, error) {
	books, err := s.repo.ListBooks(ctx, page, size)
	if err != nil {
		return model.ListBooks{}, err
	}
	ids := make([]int64, 0, len(books))
	for _, b := range books {
		ids = append(ids, b.ID)
	}
	avail, err := s.repo.Availability(ctx, ids)
	if err != nil {
		return model.ListBooks{}, err
	}

	items := make([]model.BookWithAvailability, 0, len(books))
	for _, b := range books {
		items = append(items, model.BookWithAvailability{Book: b, Availability: avail[b.ID]})
	}
	return model.ListBooks{
		Paging: model.Paging{
			Page:          page,
			PageSize:      size,
			TotalElements: len(items),
		},
		Items: items,
	}, nil
}

// Availability exposes the oracle directly for a batch of books.
func (s *Service) Availability(ctx context.Context, bookIDs []int64) (map[int64]model.Availability, error) {
	return s.repo.Availability(ctx, bookIDs)
}

func (s *Service) CreateCopy(ctx context.Context, req model.CreateCopyRequest) (model.Copy, error) {
	if !validate.IsLocation(req.Location) {
		return model.Copy{}, errs.Validation("location", `format must be like "1-A-12"`)
	}
	if req.Condition == model.ConditionLost || !req.Condition.Valid() {
		return model.Copy{}, errs.Validation("condition", "must be one of new, good, fair, poor")
	}
	if _, err := s.repo.GetBook(ctx, req.BookID); err != nil {
		return model.Copy{}, err
	}
	return s.repo.CreateCopy(ctx, model.Copy{
		BookID:    req.BookID,
		Location:  req.Location,
		Condition: req.Condition,
	})
}
