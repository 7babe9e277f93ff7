package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"go-bankaccount-api/common"
	"go-bankaccount-api/logger"
	"go-bankaccount-api/model"
	"go-bankaccount-api/service"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

type AccountHandler struct {
	service service.IAccountService
}

func NewAccountHandler(service service.IAccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

// GetAccount godoc
// @Summary      Get a bank account by id
// @Description  Returns the account only if it is owned by the caller.
// @Tags         bankaccounts
// @Produce      json
// @Param        id  path  int  true  "Account ID"
// @Success      200  {object}  model.Account
// @Failure      404
// @Security     BasicAuth
// @Router       /bankaccounts/{id} [get]
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) *common.AppError {
	id, appErr := accountIDFromPath(r)
	if appErr != nil {
		return appErr
	}
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Missing principal", nil)
	}

	account, err := h.service.GetAccountForOwner(r.Context(), id, principal)
	if err != nil {
		return mapServiceError(err)
	}

	writeJSON(w, http.StatusOK, account)
	return nil
}

// ListAccounts godoc
// @Summary      List the caller's bank accounts
// @Description  Paginated, sorted (default ascending amount) and always scoped to the authenticated owner.
// @Tags         bankaccounts
// @Produce      json
// @Param        page  query  int     false  "Page number (0-based)"
// @Param        size  query  int     false  "Page size"
// @Param        sort  query  string  false  "Sort, e.g. amount,desc"
// @Success      200  {array}  model.Account
// @Security     BasicAuth
// @Router       /bankaccounts [get]
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) *common.AppError {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Missing principal", nil)
	}

	page := parseIntParam(r, "page", 0)
	size := parseIntParam(r, "size", service.DefaultPageSize)
	sortField, sortAsc := parseSortParam(r.URL.Query().Get("sort"))

	log := logger.Log.WithFields(logrus.Fields{
		"owner": principal.Username,
		"page":  page,
		"size":  size,
	})
	log.Info("List accounts request received")

	accounts, err := h.service.ListAccountsForOwner(r.Context(), principal, page, size, sortField, sortAsc)
	if err != nil {
		return common.NewAppError(http.StatusInternalServerError, "Could not retrieve accounts", err)
	}

	writeJSON(w, http.StatusOK, accounts)
	return nil
}

// CreateAccount godoc
// @Summary      Create a new bank account
// @Description  The id is client-supplied; an existing id yields 409 rather than an overwrite.
// @Tags         bankaccounts
// @Accept       json
// @Produce      json
// @Param        account  body  model.CreateAccountRequest  true  "Account to create"
// @Success      201
// @Failure      400
// @Failure      409
// @Security     BasicAuth
// @Router       /bankaccounts [post]
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) *common.AppError {
	var req model.CreateAccountRequest
	if !common.ValidateAndDecode(w, r, &req) {
		return nil
	}

	log := logger.Log.WithFields(logrus.Fields{
		"account_id": req.ID,
		"owner":      req.Owner,
	})
	log.Info("Create account request received")

	account := &model.Account{
		ID:          req.ID,
		Amount:      req.Amount,
		AccountType: req.AccountType,
		Owner:       req.Owner,
	}
	if err := h.service.CreateNewAccount(r.Context(), account); err != nil {
		if errors.Is(err, service.ErrAccountExists) {
			return common.NewAppError(http.StatusConflict, "Account id already exists", nil)
		}
		return common.NewAppError(http.StatusInternalServerError, "Could not create account", err)
	}

	w.Header().Set("Location", fmt.Sprintf("/bankaccounts/%d", account.ID))
	w.WriteHeader(http.StatusCreated)
	return nil
}

// Deposit godoc
// @Summary      Deposit funds into a bank account
// @Description  Any authenticated caller may deposit into any existing account.
// @Tags         bankaccounts
// @Accept       json
// @Produce      json
// @Param        id       path  int                  true  "Account ID"
// @Param        deposit  body  model.DepositRecord  true  "Deposit payload"
// @Success      200  {object}  model.Account
// @Failure      400
// @Failure      404
// @Security     BasicAuth
// @Router       /bankaccounts/{id}/deposit [patch]
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) *common.AppError {
	id, appErr := accountIDFromPath(r)
	if appErr != nil {
		return appErr
	}
	var record model.DepositRecord
	if !common.ValidateAndDecode(w, r, &record) {
		return nil
	}

	account, err := h.service.Deposit(r.Context(), id, record.Amount)
	if err != nil {
		return mapServiceError(err)
	}

	writeJSON(w, http.StatusOK, account)
	return nil
}

// Withdrawal godoc
// @Summary      Withdraw funds from a bank account
// @Description  Owner-only. A missing account and a foreign account both yield 404.
// @Tags         bankaccounts
// @Accept       json
// @Produce      json
// @Param        id          path  int                     true  "Account ID"
// @Param        withdrawal  body  model.WithdrawalRecord  true  "Withdrawal payload"
// @Success      200  {object}  model.Account
// @Failure      400
// @Failure      404
// @Security     BasicAuth
// @Router       /bankaccounts/{id}/withdrawal [patch]
func (h *AccountHandler) Withdrawal(w http.ResponseWriter, r *http.Request) *common.AppError {
	id, appErr := accountIDFromPath(r)
	if appErr != nil {
		return appErr
	}
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Missing principal", nil)
	}
	var record model.WithdrawalRecord
	if !common.ValidateAndDecode(w, r, &record) {
		return nil
	}

	account, err := h.service.Withdraw(r.Context(), id, record.Amount, principal)
	if err != nil {
		return mapServiceError(err)
	}

	writeJSON(w, http.StatusOK, account)
	return nil
}

// Transfer godoc
// @Summary      Transfer funds between two bank accounts
// @Description  Owner-only on the source; both legs apply atomically or not at all. Returns the updated source account.
// @Tags         bankaccounts
// @Accept       json
// @Produce      json
// @Param        id        path  int                       true  "Source account ID"
// @Param        transfer  body  model.TransferenceRecord  true  "Transfer payload"
// @Success      200  {object}  model.Account
// @Failure      400
// @Failure      404
// @Security     BasicAuth
// @Router       /bankaccounts/{id}/transfer [patch]
func (h *AccountHandler) Transfer(w http.ResponseWriter, r *http.Request) *common.AppError {
	id, appErr := accountIDFromPath(r)
	if appErr != nil {
		return appErr
	}
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		return common.NewAppError(http.StatusUnauthorized, "Missing principal", nil)
	}
	var record model.TransferenceRecord
	if !common.ValidateAndDecode(w, r, &record) {
		return nil
	}

	account, err := h.service.Transfer(r.Context(), id, record.DestinationID, record.Amount, principal)
	if err != nil {
		return mapServiceError(err)
	}

	writeJSON(w, http.StatusOK, account)
	return nil
}

// mapServiceError translates ledger outcomes to HTTP statuses. Ownership
// failures map to the same empty 404 as missing accounts so existence never
// leaks to callers who do not own the record.
func mapServiceError(err error) *common.AppError {
	switch {
	case errors.Is(err, service.ErrAccountNotFound),
		errors.Is(err, service.ErrDestinationNotFound),
		errors.Is(err, service.ErrPermissionDenied):
		return common.NewNotFoundError()
	case errors.Is(err, service.ErrInvalidAmount):
		return common.NewAppError(http.StatusBadRequest, "Amount must be greater than zero", nil)
	case errors.Is(err, service.ErrInsufficientFunds):
		return common.NewAppError(http.StatusBadRequest, "Insufficient funds", nil)
	case errors.Is(err, service.ErrSameAccountTransfer):
		return common.NewAppError(http.StatusBadRequest, "Cannot transfer to the same account", nil)
	default:
		return common.NewAppError(http.StatusInternalServerError, "Internal server error", err)
	}
}

func accountIDFromPath(r *http.Request) (int64, *common.AppError) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, common.NewAppError(http.StatusBadRequest, "Invalid account id", nil)
	}
	return id, nil
}

func parseIntParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}

// parseSortParam understands "field" and "field,desc" style sort parameters.
func parseSortParam(raw string) (field string, asc bool) {
	if raw == "" {
		return "amount", true
	}
	parts := strings.SplitN(raw, ",", 2)
	field = parts[0]
	asc = true
	if len(parts) == 2 && strings.EqualFold(parts[1], "desc") {
		asc = false
	}
	return field, asc
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
