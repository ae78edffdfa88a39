package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/ticketscan/scan-backend/models"
	"github.com/ticketscan/scan-backend/shared"
)

const verificationServiceName = "verification-service"

const (
	findWinnerQuery = `SELECT id, ticket_id, ticket_number, draw_number, cash_amount
		FROM winning_tickets
		WHERE ticket_id = $1 AND ticket_number = $2
		LIMIT 1`

	findWinnerByIDQuery = `SELECT id, ticket_id, ticket_number, draw_number, cash_amount
		FROM winning_tickets
		WHERE id = $1`

	findRecipientQuery = `SELECT name, address FROM users WHERE id = $1`

	insertScanQuery = `INSERT INTO scanned_tickets
			(ticket_id, ticket_number, draw_number, cash_amount,
			 was_winner, winner_id, ocr_text, prediction)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (ticket_id) DO NOTHING
		RETURNING id, scanned_at, was_winner, winner_id`

	findScanQuery = `SELECT id, scanned_at, was_winner, winner_id
		FROM scanned_tickets
		WHERE ticket_id = $1`
)

// Counter names recorded on the verification service metrics
const (
	CounterInserted  = "inserted"
	CounterDuplicate = "duplicate"
	CounterWinner    = "winner"
	CounterRollback  = "rollback"
)

// VerificationRequest is the input of one verification transaction
type VerificationRequest struct {
	TicketID   string
	Fields     models.ParsedTicketFields
	OCRText    string
	Prediction *string
	UserID     uuid.UUID
}

// VerificationService matches scans against the winner registry and records
// the first scan of each ticket in the scanned_tickets ledger.
//
// The UNIQUE constraint on scanned_tickets.ticket_id is the only duplicate
// guard: concurrent submissions race on the insert and exactly one wins.
type VerificationService struct {
	DB             *sql.DB
	txOptions      *sql.TxOptions
	slowQuery      time.Duration
	serviceMetrics *shared.ServiceMetrics
	dbMetrics      *shared.DatabaseMetrics
}

// NewVerificationService creates a verification service on a shared connection pool
func NewVerificationService(db *sql.DB) *VerificationService {
	return NewVerificationServiceWithConfig(db, shared.NewDefaultUnifiedConfiguration().Database)
}

// NewVerificationServiceWithConfig creates a verification service with custom database settings
func NewVerificationServiceWithConfig(db *sql.DB, config shared.DatabaseConfig) *VerificationService {
	return &VerificationService{
		DB: db,
		// READ COMMITTED lets the read-back after a conflicting insert see the
		// row committed by the concurrent winner.
		txOptions:      &sql.TxOptions{Isolation: sql.LevelReadCommitted},
		slowQuery:      config.SlowQuery,
		serviceMetrics: shared.NewServiceMetrics("Verification_Service"),
		dbMetrics:      shared.NewDatabaseMetrics(),
	}
}

// GetServiceMetrics returns verification request metrics
func (s *VerificationService) GetServiceMetrics() *shared.ServiceMetrics {
	return s.serviceMetrics
}

// GetDatabaseMetrics returns per-statement database metrics
func (s *VerificationService) GetDatabaseMetrics() *shared.DatabaseMetrics {
	return s.dbMetrics
}

// VerifyScan runs registry match, recipient lookup, and insert-or-detect-duplicate
// as a single transaction on one pooled connection. Any storage error rolls the
// whole transaction back and is returned as a database ServiceError.
func (s *VerificationService) VerifyScan(ctx context.Context, req VerificationRequest) (*models.VerificationResult, error) {
	if strings.TrimSpace(req.TicketID) == "" {
		return nil, shared.NewServiceError(
			shared.ErrorCategoryValidation,
			shared.CodeMissingTicketID,
			"ticket_id is required",
			verificationServiceName,
			"VerifyScan",
			false,
			nil,
		)
	}

	start := time.Now()
	result, err := s.runTransaction(ctx, req)
	s.serviceMetrics.RecordRequest(err == nil, time.Since(start))
	if err != nil {
		s.serviceMetrics.IncrementCounter(CounterRollback)
		return nil, err
	}

	if result.Status == models.ScanOutcomeInserted {
		s.serviceMetrics.IncrementCounter(CounterInserted)
		if result.WasWinner {
			s.serviceMetrics.IncrementCounter(CounterWinner)
		}
	} else {
		s.serviceMetrics.IncrementCounter(CounterDuplicate)
	}

	logrus.WithFields(logrus.Fields{
		"ticket_id":  req.TicketID,
		"status":     result.Status,
		"scan_id":    result.ScanID,
		"was_winner": result.WasWinner,
		"duration":   time.Since(start),
	}).Info("Scan verified")

	return result, nil
}

func (s *VerificationService) runTransaction(ctx context.Context, req VerificationRequest) (*models.VerificationResult, error) {
	conn, err := s.DB.Conn(ctx)
	if err != nil {
		return nil, txFailure(fmt.Errorf("failed to acquire connection: %w", err), shared.CodeConnectionFailed, "connect", req.TicketID)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, s.txOptions)
	if err != nil {
		return nil, txFailure(fmt.Errorf("failed to begin transaction: %w", err), shared.CodeTransactionFailed, "begin", req.TicketID)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logrus.WithFields(logrus.Fields{
				"ticket_id": req.TicketID,
				"error":     rbErr,
			}).Warn("Rollback failed")
		}
	}()

	result, err := s.verifyInTx(ctx, tx, req)
	if err != nil {
		return nil, txFailure(err, shared.CodeTransactionFailed, "verify", req.TicketID)
	}

	if err := tx.Commit(); err != nil {
		return nil, txFailure(fmt.Errorf("failed to commit transaction: %w", err), shared.CodeTransactionFailed, "commit", req.TicketID)
	}
	committed = true

	return result, nil
}

// txFailure wraps a storage error as a database ServiceError tagged with the transaction stage
func txFailure(err error, code, stage, ticketID string) *shared.ServiceError {
	return shared.WrapError(err, shared.ErrorCategoryDatabase, code, verificationServiceName, "VerifyScan").
		WithDetails(map[string]string{"stage": stage, "ticket_id": ticketID})
}

func (s *VerificationService) verifyInTx(ctx context.Context, tx *sql.Tx, req VerificationRequest) (*models.VerificationResult, error) {
	// ticket_id alone never makes a winner; a misread ticket number must not match
	var winner *models.WinningTicketRecord
	if req.Fields.TicketNumber != nil {
		var err error
		winner, err = s.findWinner(ctx, tx, req.TicketID, *req.Fields.TicketNumber)
		if err != nil {
			return nil, err
		}
	}

	var recipient *models.Recipient
	if winner != nil {
		var err error
		recipient, err = s.findRecipient(ctx, tx, req.UserID)
		if err != nil {
			return nil, err
		}
	}

	record, inserted, err := s.insertScan(ctx, tx, req, winner)
	if err != nil {
		return nil, err
	}

	result := &models.VerificationResult{
		Parsed: req.Fields,
	}

	if inserted {
		result.Status = models.ScanOutcomeInserted
		result.Winner = winner
		if record.WasWinner && recipient != nil {
			result.RecipientName = &recipient.Name
			result.MailTo = &recipient.Address
		}
	} else {
		record, err = s.findScan(ctx, tx, req.TicketID)
		if err != nil {
			return nil, err
		}
		result.Status = models.ScanOutcomeDuplicate
		if record.WinnerID != nil {
			result.Winner, err = s.findWinnerByID(ctx, tx, *record.WinnerID)
			if err != nil {
				return nil, err
			}
		}
	}

	result.ScanID = record.ID
	result.ScannedAt = record.ScannedAt
	result.WasWinner = record.WasWinner
	result.WinnerID = record.WinnerID

	return result, nil
}

func (s *VerificationService) findWinner(ctx context.Context, tx *sql.Tx, ticketID, ticketNumber string) (*models.WinningTicketRecord, error) {
	start := time.Now()
	winner, err := scanWinner(tx.QueryRowContext(ctx, findWinnerQuery, ticketID, ticketNumber))
	s.observe(start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to look up winner: %w", err)
	}
	return winner, nil
}

func (s *VerificationService) findWinnerByID(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.WinningTicketRecord, error) {
	start := time.Now()
	winner, err := scanWinner(tx.QueryRowContext(ctx, findWinnerByIDQuery, id))
	s.observe(start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to load winner %s: %w", id, err)
	}
	return winner, nil
}

// scanWinner returns nil without error when the row does not exist
func scanWinner(row *sql.Row) (*models.WinningTicketRecord, error) {
	var (
		winner     models.WinningTicketRecord
		drawNumber sql.NullInt64
		cashAmount sql.NullInt64
	)
	err := row.Scan(&winner.ID, &winner.TicketID, &winner.TicketNumber, &drawNumber, &cashAmount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	winner.DrawNumber = int64Ptr(drawNumber)
	winner.CashAmount = int64Ptr(cashAmount)
	return &winner, nil
}

// findRecipient resolves the submitting user's own name and address; a missing user yields no recipient
func (s *VerificationService) findRecipient(ctx context.Context, tx *sql.Tx, userID uuid.UUID) (*models.Recipient, error) {
	if userID == uuid.Nil {
		logrus.Warn("Winning scan submitted without a user identity; no recipient resolved")
		return nil, nil
	}

	start := time.Now()
	var recipient models.Recipient
	err := tx.QueryRowContext(ctx, findRecipientQuery, userID).Scan(&recipient.Name, &recipient.Address)
	s.observe(start, err)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up recipient: %w", err)
	}
	return &recipient, nil
}

// insertScan inserts the ledger row unless one already exists for the ticket.
// It reports inserted=false when the insert was a no-op because of the conflict.
func (s *VerificationService) insertScan(ctx context.Context, tx *sql.Tx, req VerificationRequest, winner *models.WinningTicketRecord) (*models.ScanRecord, bool, error) {
	winnerID := uuid.NullUUID{}
	if winner != nil {
		winnerID = uuid.NullUUID{UUID: winner.ID, Valid: true}
	}

	record := &models.ScanRecord{
		TicketID:     req.TicketID,
		TicketNumber: req.Fields.TicketNumber,
		DrawNumber:   req.Fields.DrawNumber,
		CashAmount:   req.Fields.CashAmount,
		WasWinner:    winner != nil,
	}

	start := time.Now()
	var returnedWinner uuid.NullUUID
	err := tx.QueryRowContext(ctx, insertScanQuery,
		req.TicketID,
		nullString(req.Fields.TicketNumber),
		nullInt64(req.Fields.DrawNumber),
		nullInt64(req.Fields.CashAmount),
		winner != nil,
		winnerID,
		nullString(&req.OCRText),
		nullString(req.Prediction),
	).Scan(&record.ID, &record.ScannedAt, &record.WasWinner, &returnedWinner)
	s.observe(start, err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to insert scan: %w", err)
	}

	record.WinnerID = uuidPtr(returnedWinner)
	return record, true, nil
}

func (s *VerificationService) findScan(ctx context.Context, tx *sql.Tx, ticketID string) (*models.ScanRecord, error) {
	start := time.Now()
	record := &models.ScanRecord{TicketID: ticketID}
	var winnerID uuid.NullUUID
	err := tx.QueryRowContext(ctx, findScanQuery, ticketID).
		Scan(&record.ID, &record.ScannedAt, &record.WasWinner, &winnerID)
	s.observe(start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to read existing scan: %w", err)
	}
	record.WinnerID = uuidPtr(winnerID)
	return record, nil
}

func (s *VerificationService) observe(start time.Time, err error) {
	elapsed := time.Since(start)
	success := err == nil || errors.Is(err, sql.ErrNoRows)
	s.dbMetrics.RecordQuery(success, elapsed, elapsed > s.slowQuery)
	if elapsed > s.slowQuery {
		logrus.WithField("duration", elapsed).Warn("Slow database query detected")
	}
}

func nullString(v *string) sql.NullString {
	if v == nil || *v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func uuidPtr(v uuid.NullUUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := v.UUID
	return &id
}
