package accounts_http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"ledger/internal/domain"
)

type CreateAccountRequest struct {
	Balance decimal.Decimal `json:"balance"`
}

type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type TransferRequest struct {
	FromAccountID int64           `json:"fromAccountId"`
	ToAccountID   int64           `json:"toAccountId"`
	Amount        decimal.Decimal `json:"amount"`
}

type badRequestError struct {
	msg string
}

func (e *badRequestError) Error() string { return e.msg }

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &badRequestError{msg: "invalid request body"}
	}
	return nil
}

func accountIDParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &badRequestError{msg: fmt.Sprintf("invalid account id %q", raw)}
	}
	return id, nil
}

// pageRequest reads pageNo, pageSize, sortBy and sortDir. Range checks are
// left to domain.PageRequest.Validate.
func pageRequest(r *http.Request) (domain.PageRequest, error) {
	page := domain.DefaultPageRequest()
	q := r.URL.Query()

	if v := q.Get("pageNo"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, fmt.Errorf("pageNo %q: %w", v, domain.ErrInvalidPage)
		}
		page.Number = n
	}
	if v := q.Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, fmt.Errorf("pageSize %q: %w", v, domain.ErrInvalidPage)
		}
		page.Size = n
	}
	if v := q.Get("sortBy"); v != "" {
		page.SortBy = v
	}
	switch dir := strings.ToLower(q.Get("sortDir")); dir {
	case "", "asc":
	case "desc":
		page.SortDesc = true
	default:
		return page, fmt.Errorf("sortDir %q: %w", dir, domain.ErrInvalidPage)
	}
	return page, page.Validate()
}
