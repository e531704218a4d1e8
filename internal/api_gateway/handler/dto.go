package handler

import (
	"time"

	"github.com/google/uuid"

	"github.com/mybank-ledger/internal/domain/account"
	"github.com/mybank-ledger/internal/domain/ledger"
	"github.com/mybank-ledger/internal/domain/money"
	"github.com/mybank-ledger/internal/domain/token"
	"github.com/mybank-ledger/internal/ledger_core/token_vault"
)

// OpenAccountRequest represents a request to open a new account
type OpenAccountRequest struct {
	Username    string `json:"username" binding:"required,max=64"`
	Phone       string `json:"phone" binding:"omitempty,numeric,min=7,max=15"`
	AccountType string `json:"account_type" binding:"omitempty,oneof=SAVINGS CURRENT savings current"`
	PIN         string `json:"pin" binding:"required"`
}

// SetPINRequest carries a new PIN entered twice
type SetPINRequest struct {
	PIN        string `json:"pin" binding:"required"`
	ConfirmPIN string `json:"confirm_pin" binding:"required"`
}

// TransferRequest represents a request to move money to another account
type TransferRequest struct {
	ReceiverType  string `json:"receiver_type" binding:"required"`
	ReceiverValue string `json:"receiver_value" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
	PIN           string `json:"pin" binding:"required"`
}

// IssueWithdrawTokenRequest asks for a cash withdrawal code
type IssueWithdrawTokenRequest struct {
	Amount string `json:"amount" binding:"required"`
	PIN    string `json:"pin" binding:"required"`
}

// IssueDepositTokenRequest records cash inserted at an ATM
type IssueDepositTokenRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// RedeemTokenRequest carries a 6-digit token code
type RedeemTokenRequest struct {
	Code string `json:"code" binding:"required"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID            string  `json:"id"`
	OwnerName     string  `json:"owner_name"`
	AccountNumber string  `json:"account_number"`
	UPIAlias      string  `json:"upi_alias"`
	Phone         string  `json:"phone,omitempty"`
	AccountType   string  `json:"account_type"`
	Balance       string  `json:"balance"`
	HasPIN        bool    `json:"has_pin"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
	ArchivedAt    *string `json:"archived_at,omitempty"`
}

// TransactionResponse represents a ledger transaction from one account's point of view
type TransactionResponse struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Channel     string  `json:"channel"`
	Amount      string  `json:"amount"`
	Signed      string  `json:"signed_amount,omitempty"`
	SenderID    *string `json:"sender_id,omitempty"`
	ReceiverID  *string `json:"receiver_id,omitempty"`
	Description string  `json:"description"`
	Reference   string  `json:"reference,omitempty"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
}

// DashboardResponse is the account snapshot
type DashboardResponse struct {
	Account            AccountResponse       `json:"account"`
	RecentTransactions []TransactionResponse `json:"recent_transactions"`
	PaymentURI         string                `json:"payment_uri"`
}

// TransferResponse is the committed (or replayed) transfer
type TransferResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Replayed    bool                `json:"replayed"`
}

// StatementLineResponse represents one statement line
type StatementLineResponse struct {
	TransactionID  string  `json:"transaction_id"`
	Direction      string  `json:"direction"`
	Amount         string  `json:"amount"`
	CounterpartyID *string `json:"counterparty_id,omitempty"`
	Type           string  `json:"type"`
	Channel        string  `json:"channel"`
	Description    string  `json:"description"`
	Reference      string  `json:"reference,omitempty"`
	Timestamp      string  `json:"timestamp"`
}

// TokenResponse represents an issued cash token. The code is shown once, at issue.
type TokenResponse struct {
	Code      string `json:"code"`
	Kind      string `json:"kind"`
	Amount    string `json:"amount"`
	ExpiresAt string `json:"expires_at"`
}

// RedemptionResponse represents a redeemed token
type RedemptionResponse struct {
	Code        string              `json:"code"`
	Kind        string              `json:"kind"`
	Transaction TransactionResponse `json:"transaction"`
}

// TokenStatusResponse is what the owner may see about a token
type TokenStatusResponse struct {
	Code      string  `json:"code"`
	Kind      string  `json:"kind"`
	Amount    string  `json:"amount"`
	Used      bool    `json:"used"`
	Expired   bool    `json:"expired"`
	CreatedAt string  `json:"created_at"`
	ExpiresAt string  `json:"expires_at"`
	UsedAt    *string `json:"used_at,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func optionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func optionalID(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func mapAccountToResponse(acc *account.Account) AccountResponse {
	return AccountResponse{
		ID:            acc.ID.String(),
		OwnerName:     acc.OwnerName,
		AccountNumber: acc.AccountNumber,
		UPIAlias:      acc.UPIAlias,
		Phone:         acc.Phone,
		AccountType:   string(acc.Type),
		Balance:       money.Format(acc.Balance),
		HasPIN:        acc.HasPIN(),
		CreatedAt:     formatTime(acc.CreatedAt),
		UpdatedAt:     formatTime(acc.UpdatedAt),
		ArchivedAt:    optionalTime(acc.ArchivedAt),
	}
}

// mapTransactionToResponse renders tx; viewer, when set, fills the signed amount
func mapTransactionToResponse(tx *ledger.Transaction, viewer uuid.UUID) TransactionResponse {
	resp := TransactionResponse{
		ID:          tx.ID.String(),
		Type:        string(tx.Type),
		Channel:     string(tx.Channel),
		Amount:      money.Format(tx.Amount),
		SenderID:    optionalID(tx.SenderID),
		ReceiverID:  optionalID(tx.ReceiverID),
		Description: tx.Description,
		Reference:   tx.Reference,
		Status:      string(tx.Status),
		CreatedAt:   formatTime(tx.CreatedAt),
	}
	if viewer != uuid.Nil && tx.Involves(viewer) {
		resp.Signed = money.Format(tx.SignedAmountFor(viewer))
	}
	return resp
}

func mapTransactions(txs []*ledger.Transaction, viewer uuid.UUID) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, mapTransactionToResponse(tx, viewer))
	}
	return out
}

func mapStatementLines(lines []*ledger.StatementLine) []StatementLineResponse {
	out := make([]StatementLineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, StatementLineResponse{
			TransactionID:  l.TransactionID.String(),
			Direction:      string(l.Direction),
			Amount:         money.Format(l.Amount),
			CounterpartyID: optionalID(l.CounterpartyID),
			Type:           string(l.Type),
			Channel:        string(l.Channel),
			Description:    l.Description,
			Reference:      l.Reference,
			Timestamp:      formatTime(l.Timestamp),
		})
	}
	return out
}

func mapTokenToResponse(t *token.CashToken) TokenResponse {
	return TokenResponse{
		Code:      t.Code,
		Kind:      string(t.Kind),
		Amount:    money.Format(t.Amount),
		ExpiresAt: formatTime(t.ExpiresAt),
	}
}

func mapRedemptionToResponse(r *token_vault.Redemption, viewer uuid.UUID) RedemptionResponse {
	return RedemptionResponse{
		Code:        token.MaskCode(r.Token.Code),
		Kind:        string(r.Token.Kind),
		Transaction: mapTransactionToResponse(r.Transaction, viewer),
	}
}

func mapStatusToResponse(s *token_vault.Status) TokenStatusResponse {
	return TokenStatusResponse{
		Code:      s.Code,
		Kind:      string(s.Kind),
		Amount:    money.Format(s.Amount),
		Used:      s.Used,
		Expired:   s.Expired,
		CreatedAt: formatTime(s.CreatedAt),
		ExpiresAt: formatTime(s.ExpiresAt),
		UsedAt:    optionalTime(s.UsedAt),
	}
}
