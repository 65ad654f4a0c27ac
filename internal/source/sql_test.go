package source

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"github.com/jfperron/bulkstream/internal/config"
)

func newTestSource(t *testing.T, rowCount int) *SQLSource {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver:       config.DriverSQLite,
		DSN:          ":memory:",
		Table:        "large_table",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
	}

	src, err := NewSQLSource(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSQLSource error: %v", err)
	}
	t.Cleanup(func() { src.Close() })

	ctx := context.Background()
	if _, err := src.db.ExecContext(ctx,
		"CREATE TABLE large_table (id INTEGER PRIMARY KEY, name TEXT, score REAL)"); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	for i := 1; i <= rowCount; i++ {
		if _, err := src.db.ExecContext(ctx,
			"INSERT INTO large_table (id, name, score) VALUES (?, ?, ?)",
			i, fmt.Sprintf("row-%d", i), float64(i)/2); err != nil {
			t.Fatalf("failed to insert row %d: %v", i, err)
		}
	}
	return src
}

func TestNewSQLSourceRejectsBadTableName(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Driver: config.DriverSQLite,
		DSN:    ":memory:",
		Table:  "large_table; DROP TABLE x",
	}
	if _, err := NewSQLSource(cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for invalid table name")
	}
}

func TestSQLSourceFetch(t *testing.T) {
	src := newTestSource(t, 7)
	ctx := context.Background()

	tests := []struct {
		name      string
		offset    int64
		limit     int
		wantRows  int
		wantFirst int64
	}{
		{name: "first chunk", offset: 0, limit: 3, wantRows: 3, wantFirst: 1},
		{name: "middle chunk", offset: 3, limit: 3, wantRows: 3, wantFirst: 4},
		{name: "short final chunk", offset: 6, limit: 3, wantRows: 1, wantFirst: 7},
		{name: "past the end", offset: 10, limit: 3, wantRows: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := src.Fetch(ctx, tt.offset, tt.limit)
			if err != nil {
				t.Fatalf("Fetch error: %v", err)
			}
			if len(rows) != tt.wantRows {
				t.Fatalf("got %d rows, want %d", len(rows), tt.wantRows)
			}
			if tt.wantRows > 0 {
				id, ok := rows[0].Value("id")
				if !ok {
					t.Fatal("first row has no id column")
				}
				if id.(int64) != tt.wantFirst {
					t.Errorf("first id = %v, want %d", id, tt.wantFirst)
				}
			}
		})
	}
}

func TestSQLSourceFetchRejectsBadArguments(t *testing.T) {
	src := newTestSource(t, 1)
	ctx := context.Background()

	if _, err := src.Fetch(ctx, 0, 0); err == nil {
		t.Error("expected error for zero limit")
	}
	if _, err := src.Fetch(ctx, -1, 10); err == nil {
		t.Error("expected error for negative offset")
	}
}

func TestSQLSourceFetchConvertsBytes(t *testing.T) {
	src := newTestSource(t, 1)

	rows, err := src.Fetch(context.Background(), 0, 1)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	name, _ := rows[0].Value("name")
	if _, ok := name.(string); !ok {
		t.Errorf("text column decoded as %T, want string", name)
	}
}

func TestSQLSourceCount(t *testing.T) {
	src := newTestSource(t, 5)

	count, err := src.Count(context.Background())
	if err != nil {
		t.Fatalf("Count error: %v", err)
	}
	if count != 5 {
		t.Errorf("Count = %d, want 5", count)
	}

	// Idempotent against an unchanged table.
	again, err := src.Count(context.Background())
	if err != nil {
		t.Fatalf("second Count error: %v", err)
	}
	if again != count {
		t.Errorf("second Count = %d, want %d", again, count)
	}
}

func TestSQLSourceUnavailable(t *testing.T) {
	src := newTestSource(t, 1)
	src.Close()

	if _, err := src.Fetch(context.Background(), 0, 1); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Fetch on closed pool = %v, want ErrUnavailable", err)
	}
	if _, err := src.Count(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Count on closed pool = %v, want ErrUnavailable", err)
	}
	if err := src.Ping(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Ping on closed pool = %v, want ErrUnavailable", err)
	}
}
