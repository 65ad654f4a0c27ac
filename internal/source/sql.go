package source

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	// database/sql drivers selectable via database.driver
	_ "github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/go-mysql-org/go-mysql/driver"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jfperron/bulkstream/internal/config"
	"github.com/jfperron/bulkstream/internal/security"
)

// SQLSource is a RowSource over a database/sql connection pool.
type SQLSource struct {
	cfg    *config.DatabaseConfig
	logger *zap.Logger
	db     *sql.DB
	table  string // validated and escaped, safe for interpolation
}

// NewSQLSource opens the connection pool for the configured table. The table
// name is validated here because identifiers cannot be bound as parameters.
func NewSQLSource(cfg *config.DatabaseConfig, logger *zap.Logger) (*SQLSource, error) {
	table, err := security.ValidateAndEscapeIdentifier(cfg.Table, "table name")
	if err != nil {
		return nil, fmt.Errorf("invalid table name: %w", err)
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return &SQLSource{
		cfg:    cfg,
		logger: logger,
		db:     db,
		table:  table,
	}, nil
}

// Ping verifies the store is reachable.
func (s *SQLSource) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Fetch reads up to limit rows starting at offset, in the table's natural
// iteration order.
func (s *SQLSource) Fetch(ctx context.Context, offset int64, limit int) ([]Row, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("fetch limit must be positive, got %d", limit)
	}
	if offset < 0 {
		return nil, fmt.Errorf("fetch offset must be non-negative, got %d", offset)
	}

	// limit and offset are validated integers, safe to interpolate. Not all
	// supported drivers bind parameters inside LIMIT/OFFSET clauses.
	query := fmt.Sprintf("SELECT * FROM %s LIMIT %d OFFSET %d", s.table, limit, offset)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch query failed: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read result columns: %w", ErrUnavailable, err)
	}

	out := make([]Row, 0, limit)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		scanTargets := make([]interface{}, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("%w: failed to scan row: %w", ErrUnavailable, err)
		}
		for i, v := range values {
			// drivers return text columns as []byte
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		row, err := NewRow(columns, values)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration failed: %w", ErrUnavailable, err)
	}

	s.logger.Debug("Fetched rows",
		zap.Int64("offset", offset),
		zap.Int("limit", limit),
		zap.Int("returned", len(out)))

	return out, nil
}

// Count returns the total row count of the table.
func (s *SQLSource) Count(ctx context.Context) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)

	var count int64
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: count query failed: %w", ErrUnavailable, err)
	}
	return count, nil
}

// Close releases the connection pool.
func (s *SQLSource) Close() error {
	return s.db.Close()
}

// Compile-time interface compliance check
var _ RowSource = (*SQLSource)(nil)
