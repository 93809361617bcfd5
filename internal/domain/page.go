package domain

import "fmt"

const (
	DefaultPageSize = 3
	MaxPageSize     = 100
)

const (
	SortByID         = "id"
	SortByHolderName = "holderName"
	SortByBalance    = "balance"
	SortByCreatedAt  = "createdAt"
)

type PageRequest struct {
	Number   int
	Size     int
	SortBy   string
	SortDesc bool
}

func DefaultPageRequest() PageRequest {
	return PageRequest{Number: 0, Size: DefaultPageSize, SortBy: SortByID}
}

func (p PageRequest) Validate() error {
	if p.Number < 0 {
		return fmt.Errorf("page number %d: %w", p.Number, ErrInvalidPage)
	}
	if p.Size < 1 || p.Size > MaxPageSize {
		return fmt.Errorf("page size %d must be between 1 and %d: %w", p.Size, MaxPageSize, ErrInvalidPage)
	}
	switch p.SortBy {
	case SortByID, SortByHolderName, SortByBalance, SortByCreatedAt:
	default:
		return fmt.Errorf("unsupported sort field %q: %w", p.SortBy, ErrInvalidPage)
	}
	return nil
}

func (p PageRequest) Offset() int {
	return p.Number * p.Size
}

type Page[T any] struct {
	Items         []T
	Number        int
	Size          int
	TotalElements int64
	TotalPages    int
	Last          bool
}

func NewPage[T any](items []T, req PageRequest, total int64) Page[T] {
	if items == nil {
		items = []T{}
	}
	pages := 0
	if req.Size > 0 {
		pages = int((total + int64(req.Size) - 1) / int64(req.Size))
	}
	return Page[T]{
		Items:         items,
		Number:        req.Number,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    pages,
		Last:          req.Number+1 >= pages,
	}
}
