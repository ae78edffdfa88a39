package models

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ScanOutcome tags whether a verification created the ledger row or found an existing one
type ScanOutcome string

const (
	ScanOutcomeInserted  ScanOutcome = "inserted"
	ScanOutcomeDuplicate ScanOutcome = "duplicate"
)

// LooseString decodes any JSON value; non-string values decode to the empty string.
// OCR clients are not consistent about what they send for missing text.
type LooseString string

func (s *LooseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '"' {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = LooseString(str)
	return nil
}

// RawScanRequest is a single client submission
type RawScanRequest struct {
	TicketID        string      `json:"ticket_id"`
	OCRText         LooseString `json:"ocr_text"`
	PredictionLabel *string     `json:"prediction"`
}

// ParsedTicketFields holds the fields recovered from OCR text. Nil means the field could not be extracted.
type ParsedTicketFields struct {
	TicketNumber *string `json:"ticket_number"`
	DrawNumber   *int64  `json:"draw_number"`
	CashAmount   *int64  `json:"cash_amount"`
}

// ScanRecord is one row of the scanned_tickets ledger. Rows are never updated.
type ScanRecord struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TicketID     string     `json:"ticket_id" gorm:"type:text;not null;uniqueIndex"`
	TicketNumber *string    `json:"ticket_number" gorm:"type:varchar(32)"`
	DrawNumber   *int64     `json:"draw_number"`
	CashAmount   *int64     `json:"cash_amount"`
	WasWinner    bool       `json:"was_winner" gorm:"not null;default:false"`
	WinnerID     *uuid.UUID `json:"winner_id" gorm:"type:uuid"`
	OCRText      *string    `json:"ocr_text" gorm:"type:text"`
	Prediction   *string    `json:"prediction" gorm:"type:text"`
	ScannedAt    time.Time  `json:"scanned_at" gorm:"default:CURRENT_TIMESTAMP"`
}

// VerificationResult is what a scan submission returns to the presentation layer.
// Key names follow the existing client contract.
type VerificationResult struct {
	Status    ScanOutcome          `json:"status"`
	ScanID    uuid.UUID            `json:"scan_id"`
	ScannedAt time.Time            `json:"scanned_at"`
	Parsed    ParsedTicketFields   `json:"parsed"`
	WasWinner bool                 `json:"wasWinner"`
	WinnerID  *uuid.UUID           `json:"winnerId"`
	Winner    *WinningTicketRecord `json:"winner"`

	// Set only when this request inserted a winning scan
	MailTo        *string `json:"mailTo"`
	RecipientName *string `json:"recipientName"`
}
