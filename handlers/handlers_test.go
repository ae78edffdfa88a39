package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/ticketscan/scan-backend/models"
	"github.com/ticketscan/scan-backend/services"
	"github.com/ticketscan/scan-backend/shared"
)

const testSecret = "test-secret"

type stubSubmitter struct {
	result *models.VerificationResult
	err    error

	gotReq    models.RawScanRequest
	gotUserID uuid.UUID
	calls     int
}

func (s *stubSubmitter) SubmitScan(ctx context.Context, req models.RawScanRequest, userID uuid.UUID) (*models.VerificationResult, error) {
	s.calls++
	s.gotReq = req
	s.gotUserID = userID
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("expected a request deadline")
	}
	return s.result, s.err
}

type stubPool struct {
	pingErr error
}

func (p stubPool) PingContext(ctx context.Context) error { return p.pingErr }
func (p stubPool) Stats() sql.DBStats                    { return sql.DBStats{OpenConnections: 2, Idle: 2} }

func newTestApp(submitter ScanSubmitter, pool PoolChecker) *fiber.App {
	cfg := shared.NewDefaultUnifiedConfiguration().Service
	cfg.SubmitInterval = 0
	return newTestAppWithConfig(submitter, pool, cfg)
}

func newTestAppWithConfig(submitter ScanSubmitter, pool PoolChecker, cfg shared.ServiceConfig) *fiber.App {
	metrics := NewMetricsHandler(pool, services.NewVerificationService(nil), services.NewFieldExtractor())
	return NewApp(cfg, testSecret, NewScanHandler(submitter, time.Second), metrics)
}

func bearer(t *testing.T, uid uuid.UUID, secret string, ttl time.Duration) string {
	t.Helper()
	token, err := GenerateToken(uid, "ada@example.com", secret, ttl)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return "Bearer " + token
}

func postScan(t *testing.T, app *fiber.App, body, authorization string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scanned-tickets", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var decoded map[string]interface{}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode %q: %v", raw, err)
	}
	return resp.StatusCode, decoded
}

func TestSubmitScanSuccess(t *testing.T) {
	userID, winnerID := uuid.New(), uuid.New()
	name, address := "Ada Lovelace", "1 Main St"
	stub := &stubSubmitter{result: &models.VerificationResult{
		Status:        models.ScanOutcomeInserted,
		ScanID:        uuid.New(),
		ScannedAt:     time.Now(),
		WasWinner:     true,
		WinnerID:      &winnerID,
		MailTo:        &address,
		RecipientName: &name,
	}}
	app := newTestApp(stub, stubPool{})

	status, body := postScan(t, app,
		`{"ticket_id":"T-1","ocr_text":"A 07 12 36 44 48 52 QP","prediction":"ticket"}`,
		bearer(t, userID, testSecret, time.Hour))

	if status != fiber.StatusOK {
		t.Fatalf("status = %d, body = %v", status, body)
	}
	if body["status"] != "inserted" || body["wasWinner"] != true || body["mailTo"] != address {
		t.Errorf("unexpected body %v", body)
	}
	if stub.gotUserID != userID {
		t.Errorf("user id = %s, want %s", stub.gotUserID, userID)
	}
	if stub.gotReq.TicketID != "T-1" || string(stub.gotReq.OCRText) != "A 07 12 36 44 48 52 QP" {
		t.Errorf("request = %+v", stub.gotReq)
	}
	if stub.gotReq.PredictionLabel == nil || *stub.gotReq.PredictionLabel != "ticket" {
		t.Errorf("prediction = %v", stub.gotReq.PredictionLabel)
	}
}

func TestSubmitScanNonStringOCRText(t *testing.T) {
	stub := &stubSubmitter{result: &models.VerificationResult{Status: models.ScanOutcomeInserted}}
	app := newTestApp(stub, stubPool{})

	status, _ := postScan(t, app, `{"ticket_id":"T-1","ocr_text":{"lines":[]}}`, bearer(t, uuid.New(), testSecret, time.Hour))
	if status != fiber.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if stub.gotReq.OCRText != "" {
		t.Errorf("OCRText = %q, want empty", stub.gotReq.OCRText)
	}
}

func TestSubmitScanErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{
			name: "missing ticket id",
			err: shared.NewServiceError(shared.ErrorCategoryValidation, shared.CodeMissingTicketID,
				"ticket_id is required", "scan-service", "SubmitScan", false, nil),
			wantStatus: fiber.StatusBadRequest,
			wantError:  "ticket_id is required",
		},
		{
			name: "transaction failure",
			err: shared.WrapError(errors.New("relation \"scanned_tickets\" does not exist"),
				shared.ErrorCategoryDatabase, shared.CodeTransactionFailed, "verification-service", "VerifyScan"),
			wantStatus: fiber.StatusInternalServerError,
			wantError:  "database error",
		},
		{
			name:       "plain error",
			err:        errors.New("boom"),
			wantStatus: fiber.StatusInternalServerError,
			wantError:  "database error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(&stubSubmitter{err: tt.err}, stubPool{})
			status, body := postScan(t, app, `{"ticket_id":""}`, bearer(t, uuid.New(), testSecret, time.Hour))
			if status != tt.wantStatus || body["error"] != tt.wantError {
				t.Errorf("got %d %v, want %d %q", status, body, tt.wantStatus, tt.wantError)
			}
		})
	}
}

func TestSubmitScanInvalidBody(t *testing.T) {
	stub := &stubSubmitter{}
	app := newTestApp(stub, stubPool{})

	status, _ := postScan(t, app, `{"ticket_id":`, bearer(t, uuid.New(), testSecret, time.Hour))
	if status != fiber.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
	if stub.calls != 0 {
		t.Error("submitter must not be called for an unparseable body")
	}
}

func TestSubmitScanRequiresValidToken(t *testing.T) {
	uid := uuid.New()
	tests := map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic abc",
		"bad signature":  bearer(t, uid, "other-secret", time.Hour),
		"expired":        bearer(t, uid, testSecret, -time.Minute),
		"garbage":        "Bearer not.a.token",
	}

	for name, authorization := range tests {
		t.Run(name, func(t *testing.T) {
			stub := &stubSubmitter{}
			app := newTestApp(stub, stubPool{})
			status, body := postScan(t, app, `{"ticket_id":"T-1"}`, authorization)
			if status != fiber.StatusUnauthorized {
				t.Errorf("status = %d, body = %v", status, body)
			}
			if stub.calls != 0 {
				t.Error("submitter must not be called without a valid token")
			}
		})
	}
}

func TestHealth(t *testing.T) {
	for _, tt := range []struct {
		name   string
		pool   stubPool
		status int
	}{
		{"up", stubPool{}, fiber.StatusOK},
		{"down", stubPool{pingErr: errors.New("connection refused")}, fiber.StatusServiceUnavailable},
	} {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(&stubSubmitter{}, tt.pool)
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}

			body, _ := io.ReadAll(resp.Body)
			if strings.Contains(string(body), "connection refused") {
				t.Errorf("health body leaks driver error: %s", body)
			}
		})
	}
}

func TestGetMetrics(t *testing.T) {
	app := newTestApp(&stubSubmitter{}, stubPool{})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil), -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Success bool                       `json:"success"`
		Data    map[string]json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"verification", "database", "extraction", "pool", "throttle"} {
		if _, ok := body.Data[key]; !ok {
			t.Errorf("metrics missing %q", key)
		}
	}
}

func TestSubmitScanThrottlesPerUser(t *testing.T) {
	stub := &stubSubmitter{result: &models.VerificationResult{Status: models.ScanOutcomeInserted}}
	cfg := shared.NewDefaultUnifiedConfiguration().Service
	cfg.SubmitInterval = time.Hour
	app := newTestAppWithConfig(stub, stubPool{}, cfg)

	first := bearer(t, uuid.New(), testSecret, time.Hour)
	body := `{"ticket_id":"T-1","ocr_text":"DRAW #3608"}`

	if status, resp := postScan(t, app, body, first); status != fiber.StatusOK {
		t.Fatalf("first submission status = %d, body = %v", status, resp)
	}
	status, resp := postScan(t, app, body, first)
	if status != fiber.StatusTooManyRequests {
		t.Errorf("repeat submission status = %d, want 429", status)
	}
	if resp["error"] == nil {
		t.Errorf("expected an error message, got %v", resp)
	}
	if status, _ := postScan(t, app, body, bearer(t, uuid.New(), testSecret, time.Hour)); status != fiber.StatusOK {
		t.Errorf("another user's submission status = %d, want 200", status)
	}
	if stub.calls != 2 {
		t.Errorf("submitter calls = %d, want 2", stub.calls)
	}

	resp2, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/metrics", nil), -1)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp2.Body.Close()

	var metrics struct {
		Data struct {
			Throttle struct {
				Accepted int64 `json:"accepted"`
				Rejected int64 `json:"rejected"`
			} `json:"throttle"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&metrics); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if metrics.Data.Throttle.Accepted != 2 || metrics.Data.Throttle.Rejected != 1 {
		t.Errorf("throttle metrics = %+v, want 2 accepted and 1 rejected", metrics.Data.Throttle)
	}
}
