package storage

import (
	"context"
	"regexp"
	"strings"

	"github.com/aibtcdev/x402-api/internal/domain/entities"
	domainerrors "github.com/aibtcdev/x402-api/internal/domain/errors"
)

// reservedTables are the shard's own tables. Sandbox statements may not
// reference them; without this the payer could read or corrupt the plane that
// accounts for its own payments.
var reservedTables = []string{
	"kv_entries", "pastes", "locks", "queue_jobs",
	"memory_items", "content_scans", "usage_records", "usage_daily",
}

var (
	selectPattern        = regexp.MustCompile(`(?i)^SELECT\b`)
	queryKeywordPattern  = regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|CREATE|ALTER|PRAGMA)\b`)
	pragmaAssignPattern  = regexp.MustCompile(`(?i)\bPRAGMA\b[^;]*=`)
	attachPattern        = regexp.MustCompile(`(?i)\b(ATTACH|DETACH)\b`)
	reservedTablePattern = regexp.MustCompile(`(?i)\b(` + strings.Join(reservedTables, "|") + `)\b`)
)

// SQLQuery runs a read-only statement against the payer's sandbox tables.
func (s *Shard) SQLQuery(ctx context.Context, query string, params []any) (*entities.SQLQueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domainerrors.BadRequest("sql is required")
	}
	if !selectPattern.MatchString(query) {
		return nil, domainerrors.BadRequest("query must begin with SELECT")
	}
	if queryKeywordPattern.MatchString(query) {
		return nil, domainerrors.BadRequest("query contains a forbidden keyword")
	}
	if attachPattern.MatchString(query) {
		return nil, domainerrors.BadRequest("query contains a forbidden keyword")
	}
	if reservedTablePattern.MatchString(query) {
		return nil, domainerrors.BadRequest("query references a reserved table")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.WithContext(ctx).Raw(query, params...).Rows()
	if err != nil {
		return nil, domainerrors.BadRequest("sql error: " + err.Error())
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		record := make(map[string]any, len(columns))
		for i, col := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			record[col] = v
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &entities.SQLQueryResult{
		Columns:  columns,
		Rows:     out,
		RowCount: len(out),
	}, nil
}

// SQLExecute runs a mutating statement. Reserved tables stay untouchable and
// PRAGMA assignments are rejected.
func (s *Shard) SQLExecute(ctx context.Context, stmt string, params []any) (*entities.SQLExecResult, error) {
	stmt = strings.TrimSpace(stmt)
	if stmt == "" {
		return nil, domainerrors.BadRequest("sql is required")
	}
	if reservedTablePattern.MatchString(stmt) {
		return nil, domainerrors.BadRequest("statement references a reserved table")
	}
	if pragmaAssignPattern.MatchString(stmt) {
		return nil, domainerrors.BadRequest("PRAGMA assignments are not permitted")
	}
	if attachPattern.MatchString(stmt) {
		return nil, domainerrors.BadRequest("statement contains a forbidden keyword")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.db.WithContext(ctx).Exec(stmt, params...)
	if res.Error != nil {
		return nil, domainerrors.BadRequest("sql error: " + res.Error.Error())
	}
	return &entities.SQLExecResult{RowsAffected: res.RowsAffected}, nil
}

// SQLSchema lists the payer's own tables from engine introspection.
func (s *Shard) SQLSchema(ctx context.Context) ([]entities.SQLTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.WithContext(ctx).
		Raw(`SELECT name, sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name NOT IN (?) ORDER BY name`, reservedTables).
		Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tables := make([]entities.SQLTable, 0)
	for rows.Next() {
		var t entities.SQLTable
		if err := rows.Scan(&t.Name, &t.SQL); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}
