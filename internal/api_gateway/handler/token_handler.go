package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mybank-ledger/internal/api_gateway/service"
	"github.com/mybank-ledger/internal/domain/money"
)

// TokenHandler handles HTTP requests for cash tokens. Account routes act for
// the caller; ATM routes act for the machine, which holds the cash.
type TokenHandler struct {
	tokenService service.TokenService
	logger       *slog.Logger
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(logger *slog.Logger, tokenService service.TokenService) *TokenHandler {
	return &TokenHandler{
		tokenService: tokenService,
		logger:       logger,
	}
}

// IssueWithdraw issues a withdrawal code for the caller's account
func (h *TokenHandler) IssueWithdraw(c *gin.Context) {
	accountID, ok := callerAccount(c)
	if !ok {
		return
	}

	var req IssueWithdrawTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}

	t, err := h.tokenService.IssueWithdrawToken(c.Request.Context(), accountID, amount, req.PIN)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}

	RespondCreated(c, mapTokenToResponse(t))
}

// ClaimDeposit redeems a deposit code into the caller's account
func (h *TokenHandler) ClaimDeposit(c *gin.Context) {
	accountID, ok := callerAccount(c)
	if !ok {
		return
	}

	var req RedeemTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	r, err := h.tokenService.RedeemDepositToken(c.Request.Context(), req.Code, accountID)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapRedemptionToResponse(r, accountID))
}

// Status reports a token the caller owns
func (h *TokenHandler) Status(c *gin.Context) {
	accountID, ok := callerAccount(c)
	if !ok {
		return
	}

	status, err := h.tokenService.TokenStatus(c.Request.Context(), c.Param("code"), accountID)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapStatusToResponse(status))
}

// IssueDeposit records cash inserted at an ATM and returns its claim code
func (h *TokenHandler) IssueDeposit(c *gin.Context) {
	var req IssueDepositTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}

	t, err := h.tokenService.IssueDepositToken(c.Request.Context(), amount)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}

	RespondCreated(c, mapTokenToResponse(t))
}

// RedeemWithdraw pays out a withdrawal code at an ATM
func (h *TokenHandler) RedeemWithdraw(c *gin.Context) {
	var req RedeemTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	r, err := h.tokenService.RedeemWithdrawToken(c.Request.Context(), req.Code)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapRedemptionToResponse(r, uuid.Nil))
}
