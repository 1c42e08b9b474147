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

	"github.com/invoice-reconciliation/internal/api_gateway/middleware"
	"github.com/invoice-reconciliation/internal/domain/invoice"
	"github.com/invoice-reconciliation/internal/domain/shared"
)

type MockReconciliationService struct {
	mock.Mock
}

func (m *MockReconciliationService) RequestReconciliation(ctx context.Context, invoiceIDs []string, correlationID string) (*shared.ReconciliationRequest, error) {
	args := m.Called(ctx, invoiceIDs, correlationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.ReconciliationRequest), args.Error(1)
}

func (m *MockReconciliationService) GetInvoiceReconciliation(ctx context.Context, invoiceID string) (*invoice.ReconciliationStatus, error) {
	args := m.Called(ctx, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.ReconciliationStatus), args.Error(1)
}

func (m *MockReconciliationService) GetLineItemValidation(ctx context.Context, lineItemID string) (*invoice.ValidationResult, error) {
	args := m.Called(ctx, lineItemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.ValidationResult), args.Error(1)
}

func (m *MockReconciliationService) RecordApproval(ctx context.Context, invoiceID string, decision shared.ApprovalStatus, actor, comment string) (*invoice.ReconciliationStatus, error) {
	args := m.Called(ctx, invoiceID, decision, actor, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.ReconciliationStatus), args.Error(1)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func newReconciliationRouter(svc *MockReconciliationService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewReconciliationHandler(testLogger(), svc)
	router := gin.New()
	router.Use(middleware.CorrelationID())
	router.POST("/reconciliations", h.Create)
	router.GET("/invoices/:id/reconciliation", h.GetInvoiceReconciliation)
	router.GET("/line-items/:id/validation", h.GetLineItemValidation)
	router.POST("/invoices/:id/approval", h.RecordApproval)
	return router
}

func serve(router *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.CorrelationIDHeader, "corr-test")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	errInfo, ok := decode(t, rr)["error"].(map[string]interface{})
	require.True(t, ok, "'error' field should be a map")
	return errInfo["code"].(string)
}

func TestReconciliationHandler_Create(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		requestID := uuid.New()
		mockService.On("RequestReconciliation", mock.Anything, []string{"inv-1", "inv-2"}, "corr-test").
			Return(&shared.ReconciliationRequest{RequestID: requestID, InvoiceIDs: []string{"inv-1", "inv-2"}}, nil).Once()

		rr := serve(newReconciliationRouter(mockService), http.MethodPost, "/reconciliations", []byte(`{"invoice_ids": ["inv-1", "inv-2"]}`))

		assert.Equal(t, http.StatusAccepted, rr.Code)
		body := decode(t, rr)
		assert.Equal(t, "corr-test", body["correlation_id"])
		data, ok := body["data"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, requestID.String(), data["request_id"])
		assert.Equal(t, "PENDING", data["status"])
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidRequestBody", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{name: "MalformedJSON", body: `{"invoice_ids`},
			{name: "EmptyList", body: `{"invoice_ids": []}`},
			{name: "EmptyID", body: `{"invoice_ids": ["inv-1", ""]}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				mockService := new(MockReconciliationService)

				rr := serve(newReconciliationRouter(mockService), http.MethodPost, "/reconciliations", []byte(tt.body))

				assert.Equal(t, http.StatusBadRequest, rr.Code)
				assert.Equal(t, "BAD_REQUEST", errorCode(t, rr))
				mockService.AssertNotCalled(t, "RequestReconciliation", mock.Anything, mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("PublishError", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		mockService.On("RequestReconciliation", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("kafka unavailable")).Once()

		rr := serve(newReconciliationRouter(mockService), http.MethodPost, "/reconciliations", []byte(`{"invoice_ids": ["inv-1"]}`))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestReconciliationHandler_GetInvoiceReconciliation(t *testing.T) {
	evaluatedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("Found", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		mockService.On("GetInvoiceReconciliation", mock.Anything, "inv-1").Return(&invoice.ReconciliationStatus{
			InvoiceID:      "inv-1",
			Status:         shared.ValidationStatusDisputed,
			DisputeType:    "RATE_MISMATCH",
			TotalLineItems: 3,
			ApprovalStatus: shared.ApprovalStatusPending,
			EvaluatedAt:    evaluatedAt,
		}, nil).Once()

		rr := serve(newReconciliationRouter(mockService), http.MethodGet, "/invoices/inv-1/reconciliation", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		data := decode(t, rr)["data"].(map[string]interface{})
		assert.Equal(t, "DISPUTED", data["status"])
		assert.Equal(t, "RATE_MISMATCH", data["dispute_type"])
		assert.Equal(t, float64(3), data["total_line_items"])
	})

	t.Run("NotReconciled", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		mockService.On("GetInvoiceReconciliation", mock.Anything, "inv-9").Return(nil, nil).Once()

		rr := serve(newReconciliationRouter(mockService), http.MethodGet, "/invoices/inv-9/reconciliation", nil)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "NOT_FOUND", errorCode(t, rr))
	})

	t.Run("ServiceError", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		mockService.On("GetInvoiceReconciliation", mock.Anything, "inv-1").Return(nil, errors.New("mongo down")).Once()

		rr := serve(newReconciliationRouter(mockService), http.MethodGet, "/invoices/inv-1/reconciliation", nil)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestReconciliationHandler_GetLineItemValidation(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		mockService.On("GetLineItemValidation", mock.Anything, "li-1").Return(&invoice.ValidationResult{
			EntityID:      "li-1",
			EntityType:    shared.EntityTypeLineItem,
			OverallStatus: shared.ValidationStatusWarning,
			TotalRules:    2,
			Warnings:      1,
		}, nil).Once()

		rr := serve(newReconciliationRouter(mockService), http.MethodGet, "/line-items/li-1/validation", nil)

		assert.Equal(t, http.StatusOK, rr.Code)
		data := decode(t, rr)["data"].(map[string]interface{})
		assert.Equal(t, "WARNING", data["overall_status"])
		assert.Equal(t, float64(1), data["warnings"])
	})

	t.Run("NotFound", func(t *testing.T) {
		mockService := new(MockReconciliationService)
		mockService.On("GetLineItemValidation", mock.Anything, "li-9").Return(nil, nil).Once()

		rr := serve(newReconciliationRouter(mockService), http.MethodGet, "/line-items/li-9/validation", nil)

		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestReconciliationHandler_RecordApproval(t *testing.T) {
	approve := []byte(`{"decision": "APPROVED", "actor": "ops@example.com", "comment": "ok"}`)

	tests := []struct {
		name       string
		body       []byte
		serviceErr error
		wantStatus int
		wantCode   string
	}{
		{name: "Success", body: approve, wantStatus: http.StatusOK},
		{name: "BlockedInvoice", body: approve, serviceErr: invoice.ErrApprovalNotAllowed, wantStatus: http.StatusConflict, wantCode: "CONFLICT"},
		{name: "NotReconciled", body: approve, serviceErr: invoice.ErrStatusNotFound{InvoiceID: "inv-1"}, wantStatus: http.StatusConflict, wantCode: "CONFLICT"},
		{name: "ServiceError", body: approve, serviceErr: errors.New("mongo down"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_SERVER_ERROR"},
		{name: "UnknownDecision", body: []byte(`{"decision": "MAYBE", "actor": "ops@example.com"}`), wantStatus: http.StatusBadRequest, wantCode: "BAD_REQUEST"},
		{name: "MissingActor", body: []byte(`{"decision": "REJECTED"}`), wantStatus: http.StatusBadRequest, wantCode: "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockReconciliationService)
			call := mockService.On("RecordApproval", mock.Anything, "inv-1", shared.ApprovalStatusApproved, "ops@example.com", "ok")
			if tt.serviceErr != nil {
				call.Return(nil, tt.serviceErr).Maybe()
			} else {
				call.Return(&invoice.ReconciliationStatus{InvoiceID: "inv-1", ApprovalStatus: shared.ApprovalStatusApproved}, nil).Maybe()
			}

			rr := serve(newReconciliationRouter(mockService), http.MethodPost, "/invoices/inv-1/approval", tt.body)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, rr))
			} else {
				data := decode(t, rr)["data"].(map[string]interface{})
				assert.Equal(t, "APPROVED", data["approval_status"])
			}
		})
	}
}
