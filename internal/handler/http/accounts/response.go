package accounts_http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ledger/internal/domain"
)

const (
	kindUnauthorized = "UNAUTHORIZED"
	kindForbidden    = "FORBIDDEN"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type AccountResponse struct {
	ID         int64           `json:"id"`
	HolderName string          `json:"accountHolderName"`
	OwnerID    string          `json:"ownerId"`
	Balance    decimal.Decimal `json:"balance"`
	Version    int64           `json:"version"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type TransactionResponse struct {
	ID        int64           `json:"id"`
	AccountID int64           `json:"accountId"`
	Amount    decimal.Decimal `json:"amount"`
	Type      string          `json:"transactionType"`
	Timestamp time.Time       `json:"timestamp"`
}

// TransferResponse reports the caller's source account only. The destination
// may belong to someone else, so it is identified by id alone.
type TransferResponse struct {
	From        AccountResponse `json:"from"`
	ToAccountID int64           `json:"toAccountId"`
	Amount      decimal.Decimal `json:"amount"`
}

type PageResponse[T any] struct {
	Content       []T   `json:"content"`
	PageNo        int   `json:"pageNo"`
	PageSize      int   `json:"pageSize"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Last          bool  `json:"last"`
}

func toAccountResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:         a.ID,
		HolderName: a.HolderName,
		OwnerID:    a.OwnerID,
		Balance:    a.Balance,
		Version:    a.Version,
		CreatedAt:  a.CreatedAt,
		UpdatedAt:  a.UpdatedAt,
	}
}

func toTransactionResponse(t *domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:        t.ID,
		AccountID: t.AccountID,
		Amount:    t.Amount,
		Type:      string(t.Type),
		Timestamp: t.Timestamp,
	}
}

func toPageResponse[T, R any](page domain.Page[T], convert func(*T) R) PageResponse[R] {
	content := make([]R, 0, len(page.Items))
	for i := range page.Items {
		content = append(content, convert(&page.Items[i]))
	}
	return PageResponse[R]{
		Content:       content,
		PageNo:        page.Number,
		PageSize:      page.Size,
		TotalElements: page.TotalElements,
		TotalPages:    page.TotalPages,
		Last:          page.Last,
	}
}

// statusClientClosedRequest is the non-standard 499 used when the caller goes
// away before the work finishes.
const statusClientClosedRequest = 499

func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindAccountNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientFunds:
		return http.StatusConflict
	case domain.KindInvalidTransfer, domain.KindInvalidAmount, domain.KindInvalidRequest:
		return http.StatusBadRequest
	case domain.KindConcurrencyExhausted:
		return http.StatusServiceUnavailable
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	case domain.KindCancelled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeProblem(w http.ResponseWriter, status int, kind string, message string) {
	writeJSON(w, status, ErrorResponse{Error: kind, Message: message})
}

// writeError maps err onto a status code. Internal failures are logged and
// reported without detail.
func writeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
		writeProblem(w, status, string(kind), "internal server error")
		return
	}
	switch status {
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		logger.Warn("Request could not complete", zap.Error(err))
	case statusClientClosedRequest:
		logger.Info("Request cancelled by client", zap.Error(err))
	}
	writeProblem(w, status, string(kind), messageFor(err))
}

// messageFor returns the innermost sentinel text so that ids and balances
// from wrapping layers are not echoed to callers.
func messageFor(err error) string {
	for _, sentinel := range []error{
		domain.ErrAccountNotFound,
		domain.ErrInsufficientFunds,
		domain.ErrInvalidTransfer,
		domain.ErrInvalidAmount,
		domain.ErrInvalidOwner,
		domain.ErrConcurrencyExhausted,
		context.DeadlineExceeded,
		context.Canceled,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}
