package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/efreitasn/papertrader/internal/domain"
	"github.com/efreitasn/papertrader/internal/service"
	"github.com/shopspring/decimal"
)

// AccountHandler handles HTTP requests for accounts, sessions and cash.
type AccountHandler struct {
	accounts *service.AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts *service.AccountService) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// credentialsRequest is the JSON request body for POST /accounts and
// POST /sessions.
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// amountRequest is the JSON request body for deposits and withdrawals.
type amountRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

// accountResponse is the JSON response for POST /accounts (201 Created).
type accountResponse struct {
	Username  string        `json:"username"`
	Balance   moneyResponse `json:"balance"`
	CreatedAt string        `json:"created_at"`
}

// sessionResponse is the JSON response for POST /sessions (201 Created).
type sessionResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	ExpiresAt string `json:"expires_at"`
}

// balanceResponse is the JSON response for GET /account and cash movements.
type balanceResponse struct {
	Username string         `json:"username"`
	Balance  moneyResponse  `json:"balance"`
	Amount   *moneyResponse `json:"amount,omitempty"`
	Message  string         `json:"message,omitempty"`
}

// Register handles POST /accounts.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	account, err := h.accounts.Register(r.Context(), service.RegisterRequest{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, accountResponse{
		Username:  account.Username,
		Balance:   newMoney(account.Balance),
		CreatedAt: account.CreatedAt.UTC().Format(time.RFC3339),
	})
}

// Login handles POST /sessions.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	session, err := h.accounts.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, sessionResponse{
		Token:     session.Token,
		Username:  session.Username,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Logout handles DELETE /sessions.
func (h *AccountHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.accounts.Logout(sessionFrom(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// GetBalance handles GET /account.
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	res, err := h.accounts.Balance(r.Context(), sessionFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, balanceResponse{
		Username: res.Username,
		Balance:  newMoney(res.Balance),
	})
}

// Deposit handles POST /account/deposit.
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	amount, ok := parseAmount(w, r)
	if !ok {
		return
	}

	res, err := h.accounts.Deposit(r.Context(), sessionFrom(r.Context()), amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeCashMovement(w, res, "Deposited")
}

// Withdraw handles POST /account/withdraw.
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	amount, ok := parseAmount(w, r)
	if !ok {
		return
	}

	res, err := h.accounts.Withdraw(r.Context(), sessionFrom(r.Context()), amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeCashMovement(w, res, "Withdrew")
}

func parseAmount(w http.ResponseWriter, r *http.Request) (decimal.Decimal, bool) {
	var req amountRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return decimal.Zero, false
	}
	if req.Amount == nil {
		WriteError(w, http.StatusBadRequest, "validation_error", "amount is required")
		return decimal.Zero, false
	}
	return *req.Amount, true
}

func writeCashMovement(w http.ResponseWriter, res *service.BalanceResult, verb string) {
	amount := newMoney(res.Amount)
	WriteJSON(w, http.StatusOK, balanceResponse{
		Username: res.Username,
		Balance:  newMoney(res.Balance),
		Amount:   &amount,
		Message: fmt.Sprintf("%s %s. New balance: %s.",
			verb, domain.Display(res.Amount), domain.Display(res.Balance)),
	})
}
