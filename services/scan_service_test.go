package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/ticketscan/scan-backend/models"
	"github.com/ticketscan/scan-backend/shared"
)

func newMockScanService(t *testing.T) (*ScanService, sqlmock.Sqlmock) {
	t.Helper()
	verifier, mock := newMockVerificationService(t)
	return NewScanService(NewOCRNormalizer(), NewFieldExtractor(), verifier), mock
}

func TestSubmitScanParsesAndVerifies(t *testing.T) {
	svc, mock := newMockScanService(t)
	scanID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(winnerLookup).
		WithArgs("  T-200 ", sampleTicketNumber).
		WillReturnRows(sqlmock.NewRows(winnerColumns))
	mock.ExpectQuery(insertScan).
		WithArgs("  T-200 ", sampleTicketNumber, int64(3608), int64(1200000), false, nil,
			"A 07 12 36 44 48 52 AP DRAW #3608 EST CASH VALUR $1,200,000", "ticket").
		WillReturnRows(sqlmock.NewRows(scanColumns).AddRow(scanID.String(), time.Now(), false, nil))
	mock.ExpectCommit()

	label := "ticket"
	result, err := svc.SubmitScan(context.Background(), models.RawScanRequest{
		TicketID:        "  T-200 ",
		OCRText:         "A 07 12 36 44 48 52 AP DRAW #3608 EST CASH VALUR $1,200,000",
		PredictionLabel: &label,
	}, uuid.New())
	if err != nil {
		t.Fatalf("SubmitScan: %v", err)
	}

	if result.Parsed.TicketNumber == nil || *result.Parsed.TicketNumber != sampleTicketNumber {
		t.Errorf("Parsed.TicketNumber = %v", result.Parsed.TicketNumber)
	}
	if result.Status != models.ScanOutcomeInserted || result.ScanID != scanID {
		t.Errorf("unexpected result %+v", result)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSubmitScanRejectsMissingTicketID(t *testing.T) {
	svc, mock := newMockScanService(t)

	for _, id := range []string{"", " \t\n "} {
		_, err := svc.SubmitScan(context.Background(), models.RawScanRequest{TicketID: id, OCRText: "DRAW #3608"}, uuid.New())
		serviceErr, ok := shared.AsServiceError(err)
		if !ok || serviceErr.Code != shared.CodeMissingTicketID {
			t.Fatalf("ticket_id %q: expected missing ticket_id error, got %v", id, err)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("no database work expected: %v", err)
	}
}

func TestParseNeverFails(t *testing.T) {
	svc, _ := newMockScanService(t)

	for _, raw := range []string{"", "???", "A QP", "$", "DRAW #"} {
		fields := svc.Parse(raw)
		if fields.TicketNumber != nil || fields.DrawNumber != nil || fields.CashAmount != nil {
			t.Errorf("Parse(%q) = %+v, want all fields absent", raw, fields)
		}
	}
}
