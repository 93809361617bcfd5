package accounts_http

import (
	"context"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"ledger/internal/app/accounts"
	"ledger/internal/domain"
)

type AccountHandler struct {
	service accounts.Service
	logger  *zap.Logger
}

func NewAccountHandler(s accounts.Service, l *zap.Logger) *AccountHandler {
	return &AccountHandler{service: s, logger: l}
}

func (h *AccountHandler) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.requireRole(w, r, RoleUser)
	if !ok {
		return
	}
	var req CreateAccountRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, err)
		return
	}

	account, err := h.service.CreateAccount(r.Context(), actor.ID, actor.Name, req.Balance)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(account))
}

func (h *AccountHandler) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorizedAccount(w, r, true)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(account))
}

func (h *AccountHandler) DepositHandler(w http.ResponseWriter, r *http.Request) {
	h.mutateBalance(w, r, h.service.Deposit)
}

func (h *AccountHandler) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	h.mutateBalance(w, r, h.service.Withdraw)
}

type balanceOp func(ctx context.Context, accountID int64, amount decimal.Decimal) (*domain.Account, error)

func (h *AccountHandler) mutateBalance(w http.ResponseWriter, r *http.Request, op balanceOp) {
	account, ok := h.authorizedAccount(w, r, false)
	if !ok {
		return
	}
	var req AmountRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, err)
		return
	}

	updated, err := op(r.Context(), account.ID, req.Amount)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(updated))
}

func (h *AccountHandler) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireRole(w, r, RoleAdmin); !ok {
		return
	}
	page, err := pageRequest(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	result, err := h.service.ListAccounts(r.Context(), page)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(result, toAccountResponse))
}

func (h *AccountHandler) DeleteAccountHandler(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireRole(w, r, RoleAdmin); !ok {
		return
	}
	id, err := accountIDParam(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	if err := h.service.DeleteAccount(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AccountHandler) TransferHandler(w http.ResponseWriter, r *http.Request) {
	actor, _ := ActorFrom(r.Context())
	var req TransferRequest
	if err := decodeBody(r, &req); err != nil {
		h.fail(w, err)
		return
	}

	source, err := h.service.GetAccount(r.Context(), req.FromAccountID)
	if err != nil {
		h.fail(w, err)
		return
	}
	if !source.OwnedBy(actor.ID) {
		h.forbid(w, r, actor)
		return
	}

	result, err := h.service.Transfer(r.Context(), req.FromAccountID, req.ToAccountID, req.Amount)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TransferResponse{
		From:        toAccountResponse(result.From),
		ToAccountID: result.To.ID,
		Amount:      req.Amount,
	})
}

func (h *AccountHandler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	account, ok := h.authorizedAccount(w, r, true)
	if !ok {
		return
	}
	page, err := pageRequest(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	result, err := h.service.ListTransactions(r.Context(), account.ID, page)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(result, toTransactionResponse))
}

// authorizedAccount loads the {id} account and checks that the caller owns
// it, or is an admin when adminAllowed is set.
func (h *AccountHandler) authorizedAccount(w http.ResponseWriter, r *http.Request, adminAllowed bool) (*domain.Account, bool) {
	actor, _ := ActorFrom(r.Context())
	id, err := accountIDParam(r)
	if err != nil {
		h.fail(w, err)
		return nil, false
	}
	account, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return nil, false
	}
	if account.OwnedBy(actor.ID) || (adminAllowed && actor.IsAdmin()) {
		return account, true
	}
	h.forbid(w, r, actor)
	return nil, false
}

func (h *AccountHandler) requireRole(w http.ResponseWriter, r *http.Request, role string) (Actor, bool) {
	actor, _ := ActorFrom(r.Context())
	if !actor.HasRole(role) {
		h.forbid(w, r, actor)
		return actor, false
	}
	return actor, true
}

func (h *AccountHandler) forbid(w http.ResponseWriter, r *http.Request, actor Actor) {
	h.logger.Warn("Access denied", zap.String("actor_id", actor.ID), zap.String("path", r.URL.Path))
	writeProblem(w, http.StatusForbidden, kindForbidden, "access denied")
}

func (h *AccountHandler) fail(w http.ResponseWriter, err error) {
	var badReq *badRequestError
	if errors.As(err, &badReq) {
		writeProblem(w, http.StatusBadRequest, string(domain.KindInvalidRequest), badReq.msg)
		return
	}
	writeError(w, h.logger, err)
}
