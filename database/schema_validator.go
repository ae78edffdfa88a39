package database

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// ScanLedgerUniqueConstraint guards scanned_tickets.ticket_id. Duplicate
// detection depends on it; the service refuses to start without it.
const ScanLedgerUniqueConstraint = "scanned_tickets_ticket_id_key"

// requiredColumns lists the columns the verification queries read or write
var requiredColumns = map[string][]string{
	"users":           {"id", "name", "address"},
	"winning_tickets": {"id", "ticket_id", "ticket_number", "draw_number", "cash_amount"},
	"scanned_tickets": {
		"id", "ticket_id", "ticket_number", "draw_number", "cash_amount",
		"was_winner", "winner_id", "ocr_text", "prediction", "scanned_at",
	},
}

// SchemaReport describes what is missing from the live schema
type SchemaReport struct {
	MissingTables      []string
	MissingColumns     []string
	MissingConstraints []string
}

// Valid reports whether nothing required is missing
func (r *SchemaReport) Valid() bool {
	return len(r.MissingTables) == 0 && len(r.MissingColumns) == 0 && len(r.MissingConstraints) == 0
}

func (r *SchemaReport) String() string {
	if r.Valid() {
		return "schema valid"
	}
	var parts []string
	if len(r.MissingTables) > 0 {
		parts = append(parts, "missing tables: "+strings.Join(r.MissingTables, ", "))
	}
	if len(r.MissingColumns) > 0 {
		parts = append(parts, "missing columns: "+strings.Join(r.MissingColumns, ", "))
	}
	if len(r.MissingConstraints) > 0 {
		parts = append(parts, "missing constraints: "+strings.Join(r.MissingConstraints, ", "))
	}
	return strings.Join(parts, "; ")
}

// SchemaValidator checks the live schema against what the scan pipeline needs
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator instance
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// ValidateSchema validates the shared pool's schema and fails when anything required is missing
func ValidateSchema(ctx context.Context) error {
	if DB == nil {
		return fmt.Errorf("database connection not established")
	}

	report, err := NewSchemaValidator(DB).Validate(ctx)
	if err != nil {
		return fmt.Errorf("failed to validate schema: %w", err)
	}
	if !report.Valid() {
		return fmt.Errorf("schema is not usable: %s", report)
	}

	logrus.Info("Schema validation passed")
	return nil
}

// Validate inspects tables in a stable order and collects everything missing
func (v *SchemaValidator) Validate(ctx context.Context) (*SchemaReport, error) {
	report := &SchemaReport{}

	tables := make([]string, 0, len(requiredColumns))
	for table := range requiredColumns {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	for _, table := range tables {
		exists, err := v.tableExists(ctx, table)
		if err != nil {
			return nil, err
		}
		if !exists {
			report.MissingTables = append(report.MissingTables, table)
			continue
		}

		columns, err := v.getTableColumns(ctx, table)
		if err != nil {
			return nil, err
		}
		for _, column := range requiredColumns[table] {
			if _, ok := columns[column]; !ok {
				report.MissingColumns = append(report.MissingColumns, table+"."+column)
			}
		}
	}

	if !containsString(report.MissingTables, "scanned_tickets") {
		constraints, err := v.getUniqueConstraints(ctx, "scanned_tickets")
		if err != nil {
			return nil, err
		}
		if !containsString(constraints, ScanLedgerUniqueConstraint) {
			report.MissingConstraints = append(report.MissingConstraints, ScanLedgerUniqueConstraint)
		}
	}

	if !report.Valid() {
		logrus.WithFields(logrus.Fields{
			"missing_tables":      report.MissingTables,
			"missing_columns":     report.MissingColumns,
			"missing_constraints": report.MissingConstraints,
		}).Warn("Schema validation found issues")
	}

	return report, nil
}

func (v *SchemaValidator) tableExists(ctx context.Context, tableName string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`
	var exists bool
	err := v.db.QueryRowContext(ctx, query, tableName).Scan(&exists)
	return exists, err
}

// getTableColumns returns a map of column names to their data types
func (v *SchemaValidator) getTableColumns(ctx context.Context, tableName string) (map[string]string, error) {
	query := `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
	`
	rows, err := v.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns := make(map[string]string)
	for rows.Next() {
		var columnName, dataType string
		if err := rows.Scan(&columnName, &dataType); err != nil {
			return nil, err
		}
		columns[columnName] = dataType
	}

	return columns, rows.Err()
}

func (v *SchemaValidator) getUniqueConstraints(ctx context.Context, tableName string) ([]string, error) {
	query := `
		SELECT constraint_name
		FROM information_schema.table_constraints
		WHERE table_schema = 'public' AND table_name = $1 AND constraint_type = 'UNIQUE'
	`
	rows, err := v.db.QueryContext(ctx, query, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var constraints []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		constraints = append(constraints, name)
	}

	return constraints, rows.Err()
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
