package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/ticketscan/scan-backend/models"
	"github.com/ticketscan/scan-backend/shared"
)

// ScanSubmitter processes one scan submission
type ScanSubmitter interface {
	SubmitScan(ctx context.Context, req models.RawScanRequest, userID uuid.UUID) (*models.VerificationResult, error)
}

type ScanHandler struct {
	Scans          ScanSubmitter
	RequestTimeout time.Duration
}

func NewScanHandler(scans ScanSubmitter, requestTimeout time.Duration) *ScanHandler {
	return &ScanHandler{
		Scans:          scans,
		RequestTimeout: requestTimeout,
	}
}

// SubmitScan handles POST /api/v1/scanned-tickets
func (h *ScanHandler) SubmitScan(c *fiber.Ctx) error {
	userID, ok := UserIDFromContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
	}

	var req models.RawScanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	logger := logrus.WithFields(logrus.Fields{
		"request_id": c.Locals("requestid"),
		"ticket_id":  req.TicketID,
		"user_id":    userID,
	})
	logger.WithField("ocr_text", string(req.OCRText)).Debug("Scan submitted")

	ctx, cancel := context.WithTimeout(c.UserContext(), h.RequestTimeout)
	defer cancel()

	start := time.Now()
	result, err := h.Scans.SubmitScan(ctx, req, userID)
	if err != nil {
		serviceErr, ok := shared.AsServiceError(err)
		if !ok {
			serviceErr = shared.WrapError(err, shared.ErrorCategoryDatabase, shared.CodeTransactionFailed, "scan-handler", "SubmitScan")
		}
		serviceErr.LogError()

		if serviceErr.Category == shared.ErrorCategoryValidation {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": serviceErr.Message})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "database error"})
	}

	logger.WithFields(logrus.Fields{
		"status":     result.Status,
		"was_winner": result.WasWinner,
		"duration":   time.Since(start),
	}).Info("Scan processed")

	return c.JSON(result)
}
