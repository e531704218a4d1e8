package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mybank-ledger/internal/api_gateway/middleware"
	"github.com/mybank-ledger/internal/api_gateway/service"
	"github.com/mybank-ledger/internal/domain/account"
	"github.com/mybank-ledger/internal/domain/ledger"
	"github.com/mybank-ledger/internal/domain/money"
	"github.com/mybank-ledger/internal/domain/shared"
)

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) Open(ctx context.Context, input service.OpenAccountInput) (*account.Account, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountService) SetPIN(ctx context.Context, accountID uuid.UUID, pin, confirm string) error {
	return m.Called(ctx, accountID, pin, confirm).Error(0)
}

func (m *MockAccountService) Dashboard(ctx context.Context, accountID uuid.UUID) (*service.Dashboard, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Dashboard), args.Error(1)
}

func (m *MockAccountService) Transactions(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*ledger.Transaction, int64, error) {
	args := m.Called(ctx, accountID, page, perPage)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*ledger.Transaction), args.Get(1).(int64), args.Error(2)
}

func (m *MockAccountService) Statement(ctx context.Context, accountID uuid.UUID, from, to time.Time, page, perPage int) ([]*ledger.StatementLine, int64, error) {
	args := m.Called(ctx, accountID, from, to, page, perPage)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*ledger.StatementLine), args.Get(1).(int64), args.Error(2)
}

func (m *MockAccountService) Archive(ctx context.Context, accountID uuid.UUID) error {
	return m.Called(ctx, accountID).Error(0)
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CorrelationID())
	return r
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

// decodeData unmarshals the response envelope's data field into out
func decodeData(t *testing.T, rr *httptest.ResponseRecorder, out interface{}) *Response {
	t.Helper()
	var envelope struct {
		Data          json.RawMessage `json:"data"`
		Error         *ErrorInfo      `json:"error"`
		CorrelationID string          `json:"correlation_id"`
		Meta          *MetaInfo       `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &envelope))
	if out != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, out))
	}
	return &Response{Error: envelope.Error, CorrelationID: envelope.CorrelationID, Meta: envelope.Meta}
}

func asCaller(accountID uuid.UUID) map[string]string {
	return map[string]string{middleware.AccountIDHeader: accountID.String()}
}

func sampleAccount() *account.Account {
	acc, _ := account.NewAccount("asha", "9000000001", account.TypeSavings, "1234567890", "asha@mybank", "hash")
	acc.Balance = money.MustParse("1000.50")
	return acc
}

func TestAccountHandler_Open(t *testing.T) {
	logger := testLogger()

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAccountService)
		h := NewAccountHandler(logger, mockService)
		expected := sampleAccount()

		mockService.On("Open", mock.Anything, service.OpenAccountInput{
			Username: "asha", Phone: "9000000001", Type: "SAVINGS", PIN: "135790",
		}).Return(expected, nil).Once()

		router := setupTestRouter()
		router.POST("/accounts", h.Open)

		rr := doJSON(t, router, http.MethodPost, "/accounts", OpenAccountRequest{
			Username: "asha", Phone: "9000000001", AccountType: "SAVINGS", PIN: "135790",
		}, nil)
		require.Equal(t, http.StatusCreated, rr.Code)

		var body AccountResponse
		decodeData(t, rr, &body)
		assert.Equal(t, expected.ID.String(), body.ID)
		assert.Equal(t, "1234567890", body.AccountNumber)
		assert.Equal(t, "asha@mybank", body.UPIAlias)
		assert.Equal(t, "1000.50", body.Balance)
		assert.True(t, body.HasPIN)
		assert.NotContains(t, rr.Body.String(), "hash")
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidRequestBody", func(t *testing.T) {
		mockService := new(MockAccountService)
		router := setupTestRouter()
		router.POST("/accounts", NewAccountHandler(logger, mockService).Open)

		rr := doJSON(t, router, http.MethodPost, "/accounts", `{"invalid`, nil)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("ErrorMapping", func(t *testing.T) {
		tests := []struct {
			name     string
			err      error
			status   int
			wantCode string
		}{
			{"duplicate", account.ErrDuplicateAccount{Field: "UPI alias"}, http.StatusConflict, "DUPLICATE_ACCOUNT"},
			{"bad PIN", account.ErrInvalidPINFormat, http.StatusBadRequest, "INVALID_PIN_FORMAT"},
			{"numbers exhausted", service.ErrAccountNumberSpace, http.StatusServiceUnavailable, "ACCOUNT_NUMBER_EXHAUSTED"},
			{"storage", errors.New("connection refused"), http.StatusInternalServerError, "INTERNAL_SERVER_ERROR"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				mockService := new(MockAccountService)
				mockService.On("Open", mock.Anything, mock.Anything).Return(nil, tt.err).Once()
				router := setupTestRouter()
				router.POST("/accounts", NewAccountHandler(logger, mockService).Open)

				rr := doJSON(t, router, http.MethodPost, "/accounts", OpenAccountRequest{Username: "asha", PIN: "1"}, nil)
				assert.Equal(t, tt.status, rr.Code)
				resp := decodeData(t, rr, nil)
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.wantCode, resp.Error.Code)
				assert.NotEmpty(t, resp.CorrelationID)
				assert.NotContains(t, rr.Body.String(), "connection refused")
			})
		}
	})
}

func TestAccountHandler_Dashboard(t *testing.T) {
	logger := testLogger()
	acc := sampleAccount()
	other := uuid.New()
	tx := &ledger.Transaction{
		ID: uuid.New(), SenderID: &acc.ID, ReceiverID: &other,
		Amount: money.MustParse("300.00"), Type: shared.TransactionTypeInternalTransfer,
		Channel: shared.ChannelUPI, Status: shared.TransactionStatusCompleted, CreatedAt: time.Now(),
	}

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAccountService)
		mockService.On("Dashboard", mock.Anything, acc.ID).Return(&service.Dashboard{
			Account: acc, Recent: []*ledger.Transaction{tx}, PaymentURI: "upi://pay?pa=asha%40mybank",
		}, nil).Once()

		router := setupTestRouter()
		router.GET("/me", middleware.AccountIdentity(), NewAccountHandler(logger, mockService).Dashboard)

		rr := doJSON(t, router, http.MethodGet, "/me", nil, asCaller(acc.ID))
		require.Equal(t, http.StatusOK, rr.Code)

		var body DashboardResponse
		decodeData(t, rr, &body)
		assert.Equal(t, "1000.50", body.Account.Balance)
		require.Len(t, body.RecentTransactions, 1)
		assert.Equal(t, "-300.00", body.RecentTransactions[0].Signed)
		assert.Equal(t, "upi://pay?pa=asha%40mybank", body.PaymentURI)
	})

	t.Run("WithoutIdentity", func(t *testing.T) {
		router := setupTestRouter()
		router.GET("/me", middleware.AccountIdentity(), NewAccountHandler(logger, new(MockAccountService)).Dashboard)

		rr := doJSON(t, router, http.MethodGet, "/me", nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockService := new(MockAccountService)
		mockService.On("Dashboard", mock.Anything, acc.ID).Return(nil, account.ErrAccountNotFound{AccountID: acc.ID}).Once()
		router := setupTestRouter()
		router.GET("/me", middleware.AccountIdentity(), NewAccountHandler(logger, mockService).Dashboard)

		rr := doJSON(t, router, http.MethodGet, "/me", nil, asCaller(acc.ID))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestAccountHandler_SetPINAndArchive(t *testing.T) {
	logger := testLogger()
	accountID := uuid.New()

	mockService := new(MockAccountService)
	mockService.On("SetPIN", mock.Anything, accountID, "123456", "123456").Return(nil).Once()
	mockService.On("SetPIN", mock.Anything, accountID, "123456", "654321").Return(account.ErrPINMismatch).Once()
	mockService.On("Archive", mock.Anything, accountID).Return(nil).Once()

	h := NewAccountHandler(logger, mockService)
	router := setupTestRouter()
	me := router.Group("/me", middleware.AccountIdentity())
	me.PUT("/pin", h.SetPIN)
	me.POST("/archive", h.Archive)

	rr := doJSON(t, router, http.MethodPut, "/me/pin", SetPINRequest{PIN: "123456", ConfirmPIN: "123456"}, asCaller(accountID))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doJSON(t, router, http.MethodPut, "/me/pin", SetPINRequest{PIN: "123456", ConfirmPIN: "654321"}, asCaller(accountID))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/me/archive", nil, asCaller(accountID))
	assert.Equal(t, http.StatusNoContent, rr.Code)

	mockService.AssertExpectations(t)
}

func TestAccountHandler_Transactions(t *testing.T) {
	logger := testLogger()
	accountID := uuid.New()

	t.Run("Paginates", func(t *testing.T) {
		mockService := new(MockAccountService)
		txs := []*ledger.Transaction{{ID: uuid.New(), ReceiverID: &accountID, Amount: money.MustParse("5.00"), CreatedAt: time.Now()}}
		mockService.On("Transactions", mock.Anything, accountID, 2, 5).Return(txs, int64(11), nil).Once()

		router := setupTestRouter()
		router.GET("/me/transactions", middleware.AccountIdentity(), NewAccountHandler(logger, mockService).Transactions)

		rr := doJSON(t, router, http.MethodGet, "/me/transactions?page=2&per_page=5", nil, asCaller(accountID))
		require.Equal(t, http.StatusOK, rr.Code)

		var body []TransactionResponse
		resp := decodeData(t, rr, &body)
		require.Len(t, body, 1)
		assert.Equal(t, "5.00", body[0].Signed)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, 3, resp.Meta.TotalPages)
		assert.Equal(t, 11, resp.Meta.TotalItems)
	})

	t.Run("InvalidPagination", func(t *testing.T) {
		router := setupTestRouter()
		router.GET("/me/transactions", middleware.AccountIdentity(), NewAccountHandler(logger, new(MockAccountService)).Transactions)

		rr := doJSON(t, router, http.MethodGet, "/me/transactions?per_page=1000", nil, asCaller(accountID))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAccountHandler_Statement(t *testing.T) {
	logger := testLogger()
	accountID := uuid.New()
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("InclusiveDateRange", func(t *testing.T) {
		mockService := new(MockAccountService)
		lines := []*ledger.StatementLine{{
			TransactionID: uuid.New(), AccountID: accountID, Direction: ledger.DirectionDebit,
			Amount: money.MustParse("12.00"), Timestamp: from.Add(time.Hour),
		}}
		mockService.On("Statement", mock.Anything, accountID, from, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), 1, 10).
			Return(lines, int64(1), nil).Once()

		router := setupTestRouter()
		router.GET("/me/statement", middleware.AccountIdentity(), NewAccountHandler(logger, mockService).Statement)

		rr := doJSON(t, router, http.MethodGet, "/me/statement?from=2026-03-01&to=2026-03-31", nil, asCaller(accountID))
		require.Equal(t, http.StatusOK, rr.Code)

		var body []StatementLineResponse
		decodeData(t, rr, &body)
		require.Len(t, body, 1)
		assert.Equal(t, "DEBIT", body[0].Direction)
		assert.Equal(t, "12.00", body[0].Amount)
		mockService.AssertExpectations(t)
	})

	t.Run("BadDates", func(t *testing.T) {
		router := setupTestRouter()
		router.GET("/me/statement", middleware.AccountIdentity(), NewAccountHandler(logger, new(MockAccountService)).Statement)

		for _, q := range []string{"from=03/01/2026", "to=tomorrow", "from=2026-04-02&to=2026-04-01"} {
			rr := doJSON(t, router, http.MethodGet, "/me/statement?"+q, nil, asCaller(accountID))
			assert.Equal(t, http.StatusBadRequest, rr.Code, q)
		}
	})
}
