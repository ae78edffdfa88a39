package models

import (
	"github.com/google/uuid"
)

// WinningTicketRecord is a row of the winner registry. It is loaded out-of-band and only read here.
type WinningTicketRecord struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TicketID     string    `json:"ticket_id" gorm:"type:text;not null;index"`
	TicketNumber string    `json:"ticket_number" gorm:"type:varchar(32);not null"`
	DrawNumber   *int64    `json:"draw_number"`
	CashAmount   *int64    `json:"cash_amount"`
}

// Recipient is where a prize notice is mailed: the submitting user's own account details
type Recipient struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}
