package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/ticketscan/scan-backend/models"
	"github.com/ticketscan/scan-backend/shared"
)

const scanServiceName = "scan-service"

// ScanService turns one client submission into a verification result:
// normalize OCR text, extract fields, then verify and record the scan.
type ScanService struct {
	normalizer *OCRNormalizer
	extractor  *FieldExtractor
	verifier   *VerificationService
	slowScan   time.Duration
}

// NewScanService wires the scan pipeline
func NewScanService(normalizer *OCRNormalizer, extractor *FieldExtractor, verifier *VerificationService) *ScanService {
	return &ScanService{
		normalizer: normalizer,
		extractor:  extractor,
		verifier:   verifier,
		slowScan:   shared.NewDefaultUnifiedConfiguration().Service.SlowScanDuration,
	}
}

// WithSlowScanThreshold sets the duration above which a scan is logged as slow
func (s *ScanService) WithSlowScanThreshold(d time.Duration) *ScanService {
	s.slowScan = d
	return s
}

// Extractor exposes the field extractor, mainly for its metrics
func (s *ScanService) Extractor() *FieldExtractor {
	return s.extractor
}

// Verifier exposes the verification service, mainly for its metrics
func (s *ScanService) Verifier() *VerificationService {
	return s.verifier
}

// Parse normalizes raw OCR text and extracts ticket fields. It never fails;
// unreadable text yields absent fields.
func (s *ScanService) Parse(rawText string) models.ParsedTicketFields {
	return s.extractor.Extract(s.normalizer.Normalize(rawText))
}

// SubmitScan validates and processes one submission on behalf of userID
func (s *ScanService) SubmitScan(ctx context.Context, req models.RawScanRequest, userID uuid.UUID) (*models.VerificationResult, error) {
	start := time.Now()

	// whitespace-only ids are rejected, but the id is stored exactly as submitted
	if strings.TrimSpace(req.TicketID) == "" {
		return nil, shared.NewServiceError(
			shared.ErrorCategoryValidation,
			shared.CodeMissingTicketID,
			"ticket_id is required",
			scanServiceName,
			"SubmitScan",
			false,
			nil,
		)
	}

	ocrText := string(req.OCRText)
	fields := s.Parse(ocrText)

	result, err := s.verifier.VerifyScan(ctx, VerificationRequest{
		TicketID:   req.TicketID,
		Fields:     fields,
		OCRText:    ocrText,
		Prediction: req.PredictionLabel,
		UserID:     userID,
	})
	if err != nil {
		return nil, err
	}

	if elapsed := time.Since(start); elapsed > s.slowScan {
		logrus.WithFields(logrus.Fields{
			"ticket_id": req.TicketID,
			"duration":  elapsed,
		}).Warn("Slow scan submission")
	}

	return result, nil
}
