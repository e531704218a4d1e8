package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mybank-ledger/internal/api_gateway/service"
	"github.com/mybank-ledger/internal/domain/idempotency"
	"github.com/mybank-ledger/internal/domain/money"
	"github.com/mybank-ledger/internal/ledger_core/transfer"
)

const (
	// IdempotencyKeyHeader carries the caller's retry key for money-moving requests
	IdempotencyKeyHeader = "Idempotency-Key"

	// ReplayedHeader is set on responses served from a stored outcome
	ReplayedHeader = "Idempotent-Replayed"
)

// TransferHandler handles HTTP requests for account-to-account transfers
type TransferHandler struct {
	transferService service.TransferService
	logger          *slog.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(logger *slog.Logger, transferService service.TransferService) *TransferHandler {
	return &TransferHandler{
		transferService: transferService,
		logger:          logger,
	}
}

// Create transfers money from the caller to the receiver named in the body.
// A retry with the same Idempotency-Key returns the original transaction.
func (h *TransferHandler) Create(c *gin.Context) {
	senderID, ok := callerAccount(c)
	if !ok {
		return
	}

	key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	if key == "" {
		RespondWithDomainError(c, h.logger, idempotency.ErrMissingKey)
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	amount, err := money.Parse(req.Amount)
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}

	result, err := h.transferService.Transfer(c.Request.Context(), transfer.Request{
		SenderID:       senderID,
		Receiver:       transfer.Receiver{Kind: req.ReceiverType, Value: req.ReceiverValue},
		Amount:         amount,
		PIN:            req.PIN,
		IdempotencyKey: key,
	})
	if err != nil {
		RespondWithDomainError(c, h.logger, err)
		return
	}

	resp := TransferResponse{
		Transaction: mapTransactionToResponse(result.Transaction, senderID),
		Replayed:    result.Replayed,
	}
	if result.Replayed {
		c.Header(ReplayedHeader, "true")
		RespondOK(c, resp)
		return
	}
	RespondWithData(c, http.StatusCreated, resp)
}
