package services

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

// OCRCorrection rewrites one known misread of the ticket template.
// Replacement uses regexp expansion syntax (${1} for the first group).
type OCRCorrection struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// ocrCorrectionSpec is the on-disk form of an OCRCorrection
type ocrCorrectionSpec struct {
	Pattern     string `json:"pattern"`
	Replacement string `json:"replacement"`
}

// DefaultOCRCorrections are the misreads observed on the current ticket template
func DefaultOCRCorrections() []OCRCorrection {
	return []OCRCorrection{
		{Pattern: regexp.MustCompile(`AUGO(\d)`), Replacement: "AUG0${1}"},
		{Pattern: regexp.MustCompile(`\bVALUR\b`), Replacement: "VALUE"},
		{Pattern: regexp.MustCompile(`\b0DDS\b`), Replacement: "ODDS"},
		{Pattern: regexp.MustCompile(`\bAP\b`), Replacement: "QP"},
	}
}

// LoadOCRCorrections reads additional corrections from a JSON file of
// [{"pattern": "...", "replacement": "..."}] entries.
func LoadOCRCorrections(path string) ([]OCRCorrection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read corrections file: %w", err)
	}

	var specs []ocrCorrectionSpec
	if err := json.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("failed to parse corrections file: %w", err)
	}

	corrections := make([]OCRCorrection, 0, len(specs))
	for i, spec := range specs {
		if spec.Pattern == "" {
			return nil, fmt.Errorf("correction %d: empty pattern", i)
		}
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("correction %d: invalid pattern %q: %w", i, spec.Pattern, err)
		}
		corrections = append(corrections, OCRCorrection{Pattern: re, Replacement: spec.Replacement})
	}
	return corrections, nil
}

// OCRNormalizer cleans raw recognized text before field extraction.
// It holds no mutable state and is safe for concurrent use.
type OCRNormalizer struct {
	corrections []OCRCorrection
}

// NewOCRNormalizer creates a normalizer with the default correction table followed by any extra corrections
func NewOCRNormalizer(extra ...OCRCorrection) *OCRNormalizer {
	corrections := DefaultOCRCorrections()
	corrections = append(corrections, extra...)
	return &OCRNormalizer{corrections: corrections}
}

// NewOCRNormalizerFromFile creates a normalizer with the defaults plus corrections loaded from path.
// An empty path yields the defaults only.
func NewOCRNormalizerFromFile(path string) (*OCRNormalizer, error) {
	if path == "" {
		return NewOCRNormalizer(), nil
	}

	extra, err := LoadOCRCorrections(path)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"path":        path,
		"corrections": len(extra),
	}).Info("Loaded additional OCR corrections")

	return NewOCRNormalizer(extra...), nil
}

// Corrections returns a copy of the active correction table
func (n *OCRNormalizer) Corrections() []OCRCorrection {
	out := make([]OCRCorrection, len(n.corrections))
	copy(out, n.corrections)
	return out
}

// Normalize collapses whitespace, uppercases, and applies the correction table in order
func (n *OCRNormalizer) Normalize(raw string) string {
	if raw == "" {
		return ""
	}

	text := strings.ToUpper(strings.Join(strings.Fields(raw), " "))

	for _, c := range n.corrections {
		text = c.Pattern.ReplaceAllString(text, c.Replacement)
	}

	return strings.TrimSpace(text)
}
