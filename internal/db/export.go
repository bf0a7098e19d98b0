package db

import (
	"context"
	"database/sql"
	"fmt"
)

// AuditTableNames lists the tables included in audit reports.
var AuditTableNames = []string{
	"users",
	"bookings",
	"membership_requests",
	"broadcasts",
}

// GetTableNames returns the list of table names to export.
func (db *DB) GetTableNames(ctx context.Context) ([]string, error) {
	return AuditTableNames, nil
}

// GetDB exposes the underlying handle for custom export queries.
func (db *DB) GetDB() *sql.DB {
	return db.DB
}

// GetTableData returns all rows from a table as maps plus the column order.
func (db *DB) GetTableData(ctx context.Context, tableName string) ([]map[string]interface{}, []string, error) {
	// Validate table name to prevent SQL injection
	validTable := false
	for _, t := range AuditTableNames {
		if t == tableName {
			validTable = true
			break
		}
	}
	if !validTable {
		return nil, nil, fmt.Errorf("invalid table name: %s", tableName)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s", tableName))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var data []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		data = append(data, row)
	}
	return data, columns, rows.Err()
}
