/*
   Copyright 2022 The StratusLab pdisk Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/stratuslab/pdisk/utils/log"
	_ "modernc.org/sqlite"
)

// CLI invocations may write concurrently with a running server
const pragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

// Repository records operations in a SQLite database.
type Repository struct {
	db *sql.DB
}

// NewRepository opens or creates the journal at dbPath.
func NewRepository(dbPath string) (*Repository, error) {
	log.Debugf("Opening operation journal %s", dbPath)

	db, err := sql.Open("sqlite", dbPath+pragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Start records a running operation and sets its ID and StartedAt.
func (r *Repository) Start(ctx context.Context, op *Operation) error {
	op.Status = StatusRunning
	if op.StartedAt.IsZero() {
		op.StartedAt = time.Now()
	}

	query := `
		INSERT INTO operations (volume, action, backend, proxy, new_volume, size_mb, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		op.Volume, op.Action, op.Backend, op.Proxy,
		nullString(op.NewVolume), op.SizeMB, op.Status, op.StartedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record operation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get operation id: %w", err)
	}
	op.ID = id
	return nil
}

// Finish stores the final status of a started operation.
func (r *Repository) Finish(ctx context.Context, op *Operation) error {
	if op.FinishedAt.IsZero() {
		op.FinishedAt = time.Now()
	}

	query := `
		UPDATE operations
		SET status = ?, value = ?, error_message = ?, finished_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		op.Status, nullString(op.Value), nullString(op.ErrorMessage), op.FinishedAt.UnixMilli(), op.ID)
	if err != nil {
		return fmt.Errorf("failed to update operation %d: %w", op.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("operation not found: id=%d", op.ID)
	}
	return nil
}

// Get returns the operation with id, nil when there is none.
func (r *Repository) Get(ctx context.Context, id int64) (*Operation, error) {
	query := `
		SELECT id, volume, action, backend, proxy, new_volume, size_mb,
		       status, value, error_message, started_at, finished_at
		FROM operations WHERE id = ?
	`
	op, err := scanOperation(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query operation %d: %w", id, err)
	}
	return op, nil
}

// List returns the latest operations first, only those of volume when it
// is not empty. A limit of zero or less returns everything.
func (r *Repository) List(ctx context.Context, volume string, limit int) ([]*Operation, error) {
	query := `
		SELECT id, volume, action, backend, proxy, new_volume, size_mb,
		       status, value, error_message, started_at, finished_at
		FROM operations
		WHERE ? = '' OR volume = ?
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, query, volume, volume, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	defer rows.Close()

	ops := []*Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ops, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanOperation(s scanner) (*Operation, error) {
	var op Operation
	var newVolume, value, errorMessage sql.NullString
	var sizeMB, finishedAt sql.NullInt64
	var startedAt int64

	err := s.Scan(
		&op.ID, &op.Volume, &op.Action, &op.Backend, &op.Proxy, &newVolume, &sizeMB,
		&op.Status, &value, &errorMessage, &startedAt, &finishedAt)
	if err != nil {
		return nil, err
	}

	op.NewVolume = newVolume.String
	op.SizeMB = sizeMB.Int64
	op.Value = value.String
	op.ErrorMessage = errorMessage.String
	op.StartedAt = time.UnixMilli(startedAt)
	if finishedAt.Valid {
		op.FinishedAt = time.UnixMilli(finishedAt.Int64)
	}
	return &op, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
