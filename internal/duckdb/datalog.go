package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LogEntry is one row of the data log, the append-only record of every
// piece of data ingested from the wiki, the oracle or the user.
type LogEntry struct {
	ID          string
	Source      string
	DataType    string
	ReferenceID string
	Content     string
	Metadata    map[string]any
	CreatedAt   time.Time
}

// LogFilter narrows QueryLog. Empty fields match everything.
type LogFilter struct {
	Source      string
	DataType    string
	ReferenceID string
	Limit       int
}

// LogStats summarizes the data log.
type LogStats struct {
	Total    int64
	BySource map[string]int64
	ByType   map[string]int64
}

// AppendLog records e, filling in ID and CreatedAt.
func (s *Store) AppendLog(ctx context.Context, e *LogEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	var meta sql.NullString
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("encode log metadata: %w", err)
		}
		meta = sql.NullString{String: string(b), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO data_log
		(id, source, data_type, reference_id, content, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Source, e.DataType, nullString(e.ReferenceID), e.Content, meta, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("append data log: %w", err)
	}
	return nil
}

// QueryLog returns matching entries, newest first.
func (s *Store) QueryLog(ctx context.Context, f LogFilter) ([]LogEntry, error) {
	var conds []string
	var args []any
	if f.Source != "" {
		conds = append(conds, "source = ?")
		args = append(args, f.Source)
	}
	if f.DataType != "" {
		conds = append(conds, "data_type = ?")
		args = append(args, f.DataType)
	}
	if f.ReferenceID != "" {
		conds = append(conds, "reference_id = ?")
		args = append(args, f.ReferenceID)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	q := `SELECT id, source, data_type, reference_id, content, metadata, created_at FROM data_log`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC, id LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query data log: %w", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		var ref, meta sql.NullString
		if err := rows.Scan(&e.ID, &e.Source, &e.DataType, &ref, &e.Content, &meta, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan data log: %w", err)
		}
		e.ReferenceID = ref.String
		if err := decodeJSON(meta, &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode log metadata: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate data log: %w", err)
	}
	return out, nil
}

// LogStats counts entries by source and by data type.
func (s *Store) LogStats(ctx context.Context) (LogStats, error) {
	stats := LogStats{BySource: map[string]int64{}, ByType: map[string]int64{}}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM data_log").Scan(&stats.Total); err != nil {
		return stats, fmt.Errorf("count data log: %w", err)
	}
	if err := s.groupCount(ctx, "source", stats.BySource); err != nil {
		return stats, err
	}
	if err := s.groupCount(ctx, "data_type", stats.ByType); err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *Store) groupCount(ctx context.Context, column string, into map[string]int64) error {
	rows, err := s.db.QueryContext(ctx, "SELECT "+column+", COUNT(*) FROM data_log GROUP BY "+column)
	if err != nil {
		return fmt.Errorf("group data log by %s: %w", column, err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int64
		if err := rows.Scan(&k, &n); err != nil {
			return fmt.Errorf("scan data log group: %w", err)
		}
		into[k] = n
	}
	return rows.Err()
}
