// Package store archives reports in Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/mohammad-safakhou/conflictcast/internal/report"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// ErrReportNotFound aliases report.ErrNotFound so callers can treat the
// directory and the archive alike.
var ErrReportNotFound = report.ErrNotFound

var tracer = otel.Tracer("conflictcast/internal/store")

type Store struct {
	DB *sql.DB
}

// NewWithDSN opens and pings a Postgres connection.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{DB: db}, nil
}

func (s *Store) Close() error { return s.DB.Close() }

// SaveReport inserts r under name, replacing a report with the same name.
func (s *Store) SaveReport(ctx context.Context, name string, r report.Report) error {
	ctx, span := tracer.Start(ctx, "store.save_report")
	defer span.End()
	span.SetAttributes(attribute.String("report.name", name))

	payload, err := report.MarshalJSON(r)
	if err != nil {
		return err
	}
	created, err := time.ParseInLocation(report.TimestampLayout, r.Metadata.Timestamp, time.Local)
	if err != nil {
		created = time.Now()
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO reports (name, user_query, analysis_result, payload, created_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (name) DO UPDATE SET
  user_query = EXCLUDED.user_query,
  analysis_result = EXCLUDED.analysis_result,
  payload = EXCLUDED.payload,
  created_at = EXCLUDED.created_at;
`, name, r.Metadata.UserQuery, r.AnalysisResult, payload, created)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("save report %s: %w", name, err)
	}
	return nil
}

// GetReport loads the report stored under name.
func (s *Store) GetReport(ctx context.Context, name string) (report.Report, error) {
	var payload []byte
	err := s.DB.QueryRowContext(ctx, `SELECT payload FROM reports WHERE name=$1`, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return report.Report{}, ErrReportNotFound
	}
	if err != nil {
		return report.Report{}, fmt.Errorf("get report %s: %w", name, err)
	}
	var r report.Report
	if err := json.Unmarshal(payload, &r); err != nil {
		return report.Report{}, fmt.Errorf("decode report %s: %w", name, err)
	}
	return r, nil
}

// ListReports returns up to limit reports, newest first. A non-positive
// limit means 100.
func (s *Store) ListReports(ctx context.Context, limit int) ([]report.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT name, user_query, created_at
FROM reports
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()
	var out []report.Entry
	for rows.Next() {
		var e report.Entry
		if err := rows.Scan(&e.Name, &e.UserQuery, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
