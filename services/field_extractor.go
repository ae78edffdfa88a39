package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/ticketscan/scan-backend/models"
	"github.com/ticketscan/scan-backend/shared"
)

// Field names used for extraction metrics
const (
	FieldTicketNumber = "ticket_number"
	FieldDrawNumber   = "draw_number"
	FieldCashAmount   = "cash_amount"
)

const (
	picksPerTicket     = 6
	ticketNumberPrefix = "A"
)

var (
	strictPicksRegex   = regexp.MustCompile(`\bA\s+([0-9O]{1,2})\s+([0-9O]{1,2})\s+([0-9O]{1,2})\s+([0-9O]{1,2})\s+([0-9O]{1,2})\s+([0-9O]{1,2})\s+QP\b`)
	flexiblePicksRegex = regexp.MustCompile(`\bA\s+([0-9O\s]{8,})\s+QP\b`)
	nonDigitRegex      = regexp.MustCompile(`[^0-9]`)
	drawNumberRegex    = regexp.MustCompile(`DRAW\s*[#:]*\s*(\d{3,6})`)
	labeledCashRegex   = regexp.MustCompile(`EST\.?\s*CASH\s*VAL(?:UE|UR)\s*\$?\s*([\d,]+(?:\.\d{2})?)`)
	dollarAmountRegex  = regexp.MustCompile(`\$\s*([\d,]+(?:\.\d{2})?)`)
)

// TicketNumberStrategy recovers the six printed picks from normalized text
type TicketNumberStrategy interface {
	Name() string
	Extract(text string) (string, bool)
}

// CashAmountStrategy recovers the ticket's cash value from normalized text.
// matched reports that the strategy recognized its pattern; a matched strategy
// ends the chain even when the amount could not be read.
type CashAmountStrategy interface {
	Name() string
	Extract(text string) (amount int64, ok bool, matched bool)
}

// StrictPicksStrategy accepts exactly six 1-2 digit groups between the A and QP markers
type StrictPicksStrategy struct{}

func (StrictPicksStrategy) Name() string { return "strict" }

func (StrictPicksStrategy) Extract(text string) (string, bool) {
	m := strictPicksRegex.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return formatTicketNumber(m[1 : 1+picksPerTicket]), true
}

// FlexiblePicksStrategy tokenizes everything between the markers and re-chunks merged digit runs
type FlexiblePicksStrategy struct{}

func (FlexiblePicksStrategy) Name() string { return "flexible" }

func (FlexiblePicksStrategy) Extract(text string) (string, bool) {
	m := flexiblePicksRegex.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}

	picks := splitPickTokens(strings.Fields(m[1]))
	if len(picks) != picksPerTicket {
		return "", false
	}
	return formatTicketNumber(picks), true
}

// splitPickTokens maps O to 0, strips non-digits, and splits runs longer than two
// digits into two-digit chunks. A trailing odd digit of a merged run is not a pick.
func splitPickTokens(tokens []string) []string {
	picks := make([]string, 0, picksPerTicket)
	for _, tok := range tokens {
		digits := nonDigitRegex.ReplaceAllString(strings.ReplaceAll(tok, "O", "0"), "")
		if digits == "" {
			continue
		}

		if len(digits) <= 2 {
			picks = append(picks, digits)
		} else {
			for i := 0; i+2 <= len(digits); i += 2 {
				picks = append(picks, digits[i:i+2])
			}
		}

		if len(picks) >= picksPerTicket {
			return picks[:picksPerTicket]
		}
	}
	return picks
}

func formatTicketNumber(picks []string) string {
	parts := make([]string, 0, len(picks)+1)
	parts = append(parts, ticketNumberPrefix)
	for _, p := range picks {
		p = strings.ReplaceAll(p, "O", "0")
		if len(p) < 2 {
			p = "0" + p
		}
		parts = append(parts, p)
	}
	return strings.Join(parts, " ")
}

// LabeledCashStrategy reads the amount printed next to the EST CASH VALUE label
type LabeledCashStrategy struct{}

func (LabeledCashStrategy) Name() string { return "labeled" }

func (LabeledCashStrategy) Extract(text string) (int64, bool, bool) {
	m := labeledCashRegex.FindStringSubmatch(text)
	if m == nil {
		return 0, false, false
	}
	amount, ok := parseWholeDollars(m[1])
	return amount, ok, true
}

// MaxDollarStrategy takes the largest dollar figure anywhere in the text
type MaxDollarStrategy struct{}

func (MaxDollarStrategy) Name() string { return "max_dollar" }

func (MaxDollarStrategy) Extract(text string) (int64, bool, bool) {
	var (
		best  int64
		found bool
	)
	for _, m := range dollarAmountRegex.FindAllStringSubmatch(text, -1) {
		amount, ok := parseWholeDollars(m[1])
		if !ok {
			continue
		}
		if !found || amount > best {
			best = amount
			found = true
		}
	}
	return best, found, found
}

// parseWholeDollars drops thousands separators and cents, rejecting values that are not numbers or do not fit in int64
func parseWholeDollars(raw string) (int64, bool) {
	cleaned := strings.ReplaceAll(raw, ",", "")
	if cleaned == "" || strings.HasPrefix(cleaned, ".") {
		return 0, false
	}

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, false
	}

	whole := amount.Truncate(0).BigInt()
	if !whole.IsInt64() {
		return 0, false
	}
	return whole.Int64(), true
}

// FieldExtractor derives structured ticket fields from normalized OCR text.
// Each field is extracted independently; a miss on one never affects the others.
type FieldExtractor struct {
	ticketStrategies []TicketNumberStrategy
	cashStrategies   []CashAmountStrategy
	metrics          *shared.ExtractionMetrics
}

// NewFieldExtractor creates an extractor with the default strategy order: strict then flexible picks, labeled then max-dollar cash
func NewFieldExtractor() *FieldExtractor {
	return NewFieldExtractorWithStrategies(
		[]TicketNumberStrategy{StrictPicksStrategy{}, FlexiblePicksStrategy{}},
		[]CashAmountStrategy{LabeledCashStrategy{}, MaxDollarStrategy{}},
	)
}

// NewFieldExtractorWithStrategies creates an extractor with custom ordered strategy lists
func NewFieldExtractorWithStrategies(ticket []TicketNumberStrategy, cash []CashAmountStrategy) *FieldExtractor {
	return &FieldExtractor{
		ticketStrategies: ticket,
		cashStrategies:   cash,
		metrics:          shared.NewExtractionMetrics(),
	}
}

// Metrics returns the extractor's hit-rate metrics
func (e *FieldExtractor) Metrics() *shared.ExtractionMetrics {
	return e.metrics
}

// Extract runs all three field extractions over normalized text
func (e *FieldExtractor) Extract(text string) models.ParsedTicketFields {
	if text == "" {
		e.metrics.RecordEmptyDocument()
	}

	fields := models.ParsedTicketFields{}

	if ticketNumber, ok := e.ExtractTicketNumber(text); ok {
		fields.TicketNumber = &ticketNumber
	}
	if draw, ok := e.ExtractDrawNumber(text); ok {
		fields.DrawNumber = &draw
	}
	if cash, ok := e.ExtractCashAmount(text); ok {
		fields.CashAmount = &cash
	}

	return fields
}

// ExtractTicketNumber evaluates the ticket strategies in order and returns the first success
func (e *FieldExtractor) ExtractTicketNumber(text string) (string, bool) {
	for _, s := range e.ticketStrategies {
		if ticketNumber, ok := s.Extract(text); ok {
			e.metrics.RecordFieldAttempt(FieldTicketNumber, true)
			e.metrics.RecordStrategyHit(FieldTicketNumber, s.Name())
			return ticketNumber, true
		}
	}
	e.metrics.RecordFieldAttempt(FieldTicketNumber, false)
	return "", false
}

// ExtractDrawNumber returns the first 3-6 digit run after the DRAW label
func (e *FieldExtractor) ExtractDrawNumber(text string) (int64, bool) {
	m := drawNumberRegex.FindStringSubmatch(text)
	if m == nil {
		e.metrics.RecordFieldAttempt(FieldDrawNumber, false)
		return 0, false
	}

	draw, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		e.metrics.RecordFieldAttempt(FieldDrawNumber, false)
		return 0, false
	}

	e.metrics.RecordFieldAttempt(FieldDrawNumber, true)
	return draw, true
}

// ExtractCashAmount evaluates the cash strategies in order and stops at the first one that matches
func (e *FieldExtractor) ExtractCashAmount(text string) (int64, bool) {
	for _, s := range e.cashStrategies {
		amount, ok, matched := s.Extract(text)
		if !matched {
			continue
		}
		if !ok {
			break
		}
		e.metrics.RecordFieldAttempt(FieldCashAmount, true)
		e.metrics.RecordStrategyHit(FieldCashAmount, s.Name())
		return amount, true
	}
	e.metrics.RecordFieldAttempt(FieldCashAmount, false)
	return 0, false
}

// String describes the configured strategy order, used in startup logs
func (e *FieldExtractor) String() string {
	ticket := make([]string, 0, len(e.ticketStrategies))
	for _, s := range e.ticketStrategies {
		ticket = append(ticket, s.Name())
	}
	cash := make([]string, 0, len(e.cashStrategies))
	for _, s := range e.cashStrategies {
		cash = append(cash, s.Name())
	}
	return fmt.Sprintf("ticket_number=[%s] cash_amount=[%s]", strings.Join(ticket, ","), strings.Join(cash, ","))
}
