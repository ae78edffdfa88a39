package services

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestNormalize(t *testing.T) {
	n := NewOCRNormalizer()

	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", " \t\n ", ""},
		{"collapses whitespace and uppercases", "  draw  #3608\n\test cash\tvalue ", "DRAW #3608 EST CASH VALUE"},
		{"date misread", "aug05 augo7 2024", "AUG05 AUG07 2024"},
		{"value misread", "EST CASH VALUR $1,000", "EST CASH VALUE $1,000"},
		{"odds misread", "0DDS 1 IN 9", "ODDS 1 IN 9"},
		{"quick pick misread", "A 07 12 36 44 48 52 AP", "A 07 12 36 44 48 52 QP"},
		{"no correction inside words", "VALURE APPLE 0DDSX", "VALURE APPLE 0DDSX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.Normalize(tt.raw); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeExtraCorrectionsRunAfterDefaults(t *testing.T) {
	n := NewOCRNormalizer(OCRCorrection{Pattern: regexp.MustCompile(`\bQP\b`), Replacement: "QUICKPICK"})

	if got := n.Normalize("a 1 ap"); got != "A 1 QUICKPICK" {
		t.Errorf("Normalize = %q, want the extra correction applied to the default's output", got)
	}
	if len(n.Corrections()) != len(DefaultOCRCorrections())+1 {
		t.Errorf("Corrections() has %d entries", len(n.Corrections()))
	}
}

func TestNormalizeProperties(t *testing.T) {
	n := NewOCRNormalizer()
	whitespace := regexp.MustCompile(`\s{2,}|[\t\n\r]`)

	tokens := gen.OneGenOf(
		gen.OneConstOf("augo1", "valur", "0dds", "ap", "qp", "A", "draw", "#3608", "$1,200", "est.", "cash"),
		gen.OneConstOf(" ", "  ", "\t", "\n", "\r\n"),
		gen.AlphaString(),
		gen.NumString(),
	)

	properties := gopter.NewProperties(nil)

	properties.Property("normalization is idempotent", prop.ForAll(
		func(parts []string) bool {
			once := n.Normalize(strings.Join(parts, ""))
			return n.Normalize(once) == once
		},
		gen.SliceOf(tokens),
	))

	properties.Property("normalized text has no lowercase letters and single spaces only", prop.ForAll(
		func(parts []string) bool {
			out := n.Normalize(strings.Join(parts, ""))
			return out == strings.ToUpper(out) &&
				!whitespace.MatchString(out) &&
				out == strings.TrimSpace(out)
		},
		gen.SliceOf(tokens),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestLoadOCRCorrections(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrections.json")
	content := `[{"pattern": "\\bDRAVV\\b", "replacement": "DRAW"}, {"pattern": "5O", "replacement": "50"}]`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write corrections: %v", err)
	}

	n, err := NewOCRNormalizerFromFile(path)
	if err != nil {
		t.Fatalf("NewOCRNormalizerFromFile: %v", err)
	}
	if got := n.Normalize("dravv #5O1"); got != "DRAW #501" {
		t.Errorf("Normalize = %q, want DRAW #501", got)
	}
}

func TestLoadOCRCorrectionsErrors(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"invalid json":    `{not json`,
		"empty pattern":   `[{"pattern": "", "replacement": "X"}]`,
		"invalid pattern": `[{"pattern": "(", "replacement": "X"}]`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".json")
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				t.Fatalf("write corrections: %v", err)
			}
			if _, err := LoadOCRCorrections(path); err == nil {
				t.Error("expected an error")
			}
		})
	}

	if _, err := LoadOCRCorrections(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestNewOCRNormalizerFromFileEmptyPath(t *testing.T) {
	n, err := NewOCRNormalizerFromFile("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(n.Corrections()) != len(DefaultOCRCorrections()) {
		t.Errorf("expected only the default corrections, got %d", len(n.Corrections()))
	}
}
