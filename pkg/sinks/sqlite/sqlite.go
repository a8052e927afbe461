/*
Copyright 2022 The Numaproj Authors.

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

// Package sqlite keeps a ledger of toll notifications and assessments in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/numaproj/linearroad/pkg/isb"
	"github.com/numaproj/linearroad/pkg/shared/logging"
	"github.com/numaproj/linearroad/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS tolls (
	stream    TEXT    NOT NULL,
	vid       INTEGER NOT NULL,
	time      INTEGER NOT NULL,
	emit_time INTEGER NOT NULL,
	lav       INTEGER NOT NULL,
	toll      INTEGER NOT NULL,
	PRIMARY KEY (stream, vid, time)
)`

// a replayed record replaces the stored one
const insert = `INSERT OR REPLACE INTO tolls (stream, vid, time, emit_time, lav, toll) VALUES (?, ?, ?, ?, ?, ?)`

// ToSQLite is the toll ledger sink. Records other than toll notifications are ignored.
type ToSQLite struct {
	name string
	db   *sql.DB
	log  *zap.SugaredLogger
}

// NewToSQLite opens the database at path and creates the ledger table.
func NewToSQLite(ctx context.Context, name, path string) (*ToSQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection, an in memory database is private to its connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &ToSQLite{name: name, db: db, log: logging.FromContext(ctx).With("sink", name)}, nil
}

// GetName returns the name.
func (s *ToSQLite) GetName() string {
	return s.name
}

// Write stores the toll records of the batch in one transaction.
func (s *ToSQLite) Write(ctx context.Context, messages []*isb.Message) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, m := range messages {
		n, ok := m.Record.(*types.TollNotification)
		if !ok {
			continue
		}
		if _, err = stmt.ExecContext(ctx, m.Stream.String(), n.VID, n.Time, n.EmitTime, n.Speed, n.Toll); err != nil {
			return fmt.Errorf("failed to store %s, %w", m, err)
		}
	}
	return tx.Commit()
}

// Balances returns the sum of the tolls assessed to every billed vehicle.
func (s *ToSQLite) Balances(ctx context.Context) (map[int32]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT vid, SUM(toll) FROM tolls WHERE stream = ? GROUP BY vid`,
		isb.TollAssessments.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	balances := make(map[int32]int)
	for rows.Next() {
		var (
			vid     int32
			balance int
		)
		if err := rows.Scan(&vid, &balance); err != nil {
			return nil, err
		}
		balances[vid] = balance
	}
	return balances, rows.Err()
}

// Count returns the number of records stored for the stream.
func (s *ToSQLite) Count(ctx context.Context, stream isb.StreamID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tolls WHERE stream = ?`, stream.String()).Scan(&n)
	return n, err
}

// Close logs the ledger totals and closes the database.
func (s *ToSQLite) Close() error {
	if err := s.logLedger(context.Background()); err != nil {
		s.log.Warnw("Failed to summarize toll ledger", zap.Error(err))
	}
	return s.db.Close()
}

func (s *ToSQLite) logLedger(ctx context.Context) error {
	notifications, err := s.Count(ctx, isb.TollNotifications)
	if err != nil {
		return err
	}
	assessments, err := s.Count(ctx, isb.TollAssessments)
	if err != nil {
		return err
	}
	balances, err := s.Balances(ctx)
	if err != nil {
		return err
	}
	revenue := 0
	for vid, b := range balances {
		revenue += b
		s.log.Debugw("Vehicle balance", "vid", vid, "balance", b)
	}
	s.log.Infow("Toll ledger", "notifications", notifications, "assessments", assessments, "vehicles", len(balances), "revenue", revenue)
	return nil
}
