package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mybank-ledger/internal/api_gateway/middleware"
	"github.com/mybank-ledger/internal/api_gateway/service"
)

const statementDateLayout = "2006-01-02"

// AccountHandler handles HTTP requests for account operations
type AccountHandler struct {
	accountService service.AccountService
	logger         *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, accountService service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		logger:         logger,
	}
}

// Open handles opening a new account
func (h *AccountHandler) Open(c *gin.Context) {
	var req OpenAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	acc, err := h.accountService.Open(c.Request.Context(), service.OpenAccountInput{
		Username: req.Username,
		Phone:    req.Phone,
		Type:     req.AccountType,
		PIN:      req.PIN,
	})
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}

	RespondCreated(c, mapAccountToResponse(acc))
}

// Dashboard returns the caller's account with its recent transactions
func (h *AccountHandler) Dashboard(c *gin.Context) {
	accountID, ok := callerAccount(c)
	if !ok {
		return
	}

	dashboard, err := h.accountService.Dashboard(c.Request.Context(), accountID)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, DashboardResponse{
		Account:            mapAccountToResponse(dashboard.Account),
		RecentTransactions: mapTransactions(dashboard.Recent, accountID),
		PaymentURI:         dashboard.PaymentURI,
	})
}

// SetPIN replaces the caller's transaction PIN
func (h *AccountHandler) SetPIN(c *gin.Context) {
	accountID, ok := callerAccount(c)
	if !ok {
		return
	}

	var req SetPINRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if err := h.accountService.SetPIN(c.Request.Context(), accountID, req.PIN, req.ConfirmPIN); err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}

	RespondNoContent(c)
}

// Transactions returns a page of the caller's ledger history
func (h *AccountHandler) Transactions(c *gin.Context) {
	accountID, ok := callerAccount(c)
	if !ok {
		return
	}

	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	txs, total, err := h.accountService.Transactions(c.Request.Context(), accountID, params.Page, params.PerPage)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}

	RespondWithPaginatedData(c, http.StatusOK, mapTransactions(txs, accountID), params.Page, params.PerPage, int(total))
}

// Statement returns a page of the caller's statement lines. from and to are
// calendar dates; to is inclusive.
func (h *AccountHandler) Statement(c *gin.Context) {
	accountID, ok := callerAccount(c)
	if !ok {
		return
	}

	var params PaginationParams
	if err := c.ShouldBindQuery(&params); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	var from, to time.Time
	if raw := c.Query("from"); raw != "" {
		d, err := time.Parse(statementDateLayout, raw)
		if err != nil {
			RespondBadRequest(c, "from must be a date in YYYY-MM-DD format")
			return
		}
		from = d
	}
	if raw := c.Query("to"); raw != "" {
		d, err := time.Parse(statementDateLayout, raw)
		if err != nil {
			RespondBadRequest(c, "to must be a date in YYYY-MM-DD format")
			return
		}
		to = d.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		RespondBadRequest(c, "from must not be after to")
		return
	}

	lines, total, err := h.accountService.Statement(c.Request.Context(), accountID, from, to, params.Page, params.PerPage)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}

	RespondWithPaginatedData(c, http.StatusOK, mapStatementLines(lines), params.Page, params.PerPage, int(total))
}

// Archive closes the caller's account to new mutations
func (h *AccountHandler) Archive(c *gin.Context) {
	accountID, ok := callerAccount(c)
	if !ok {
		return
	}

	if err := h.accountService.Archive(c.Request.Context(), accountID); err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}

	RespondNoContent(c)
}

// callerAccount returns the authenticated account id, responding 401 when absent
func callerAccount(c *gin.Context) (uuid.UUID, bool) {
	accountID, ok := middleware.GetAccountID(c)
	if !ok {
		RespondUnauthorized(c, "")
		return uuid.Nil, false
	}
	return accountID, true
}
