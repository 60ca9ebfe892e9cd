package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/dhcgn/mail-to-pairs/corpus"
	"github.com/dhcgn/mail-to-pairs/model"
)

const (
	upsertMessage = `
		INSERT INTO messages (conversation_id, position, sender, sent, recipients, subject, body, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(conversation_id, position) DO UPDATE SET
			sender = excluded.sender,
			sent = excluded.sent,
			recipients = excluded.recipients,
			subject = excluded.subject,
			body = excluded.body,
			updated_at = CURRENT_TIMESTAMP`

	upsertPair = `
		INSERT INTO pairs (conversation_id, position, prompt, completion, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(conversation_id, position) DO UPDATE SET
			prompt = excluded.prompt,
			completion = excluded.completion,
			updated_at = CURRENT_TIMESTAMP`
)

// SQLiteWriter upserts threads and pairs into a sqlite database.
type SQLiteWriter struct {
	Path string
}

// Open creates the database file and schema if needed.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return db, nil
}

func (w *SQLiteWriter) Write(ctx context.Context, c corpus.Corpus, ps []model.TrainingPair) error {
	db, err := Open(w.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	msgStmt, err := tx.PrepareContext(ctx, upsertMessage)
	if err != nil {
		return fmt.Errorf("prepare message upsert: %w", err)
	}
	defer msgStmt.Close()

	for _, entry := range c.Entries() {
		for pos, msg := range entry.Thread {
			if _, err := msgStmt.ExecContext(ctx, entry.ConversationID, pos, msg.From, msg.Sent, msg.To, msg.Subject, msg.Body); err != nil {
				return fmt.Errorf("upsert message %s/%d: %w", entry.ConversationID, pos, err)
			}
		}
	}

	pairStmt, err := tx.PrepareContext(ctx, upsertPair)
	if err != nil {
		return fmt.Errorf("prepare pair upsert: %w", err)
	}
	defer pairStmt.Close()

	for _, p := range ps {
		if _, err := pairStmt.ExecContext(ctx, p.ConversationID, p.Position, p.Prompt, p.Completion); err != nil {
			return fmt.Errorf("upsert pair %s/%d: %w", p.ConversationID, p.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dataset: %w", err)
	}
	return nil
}

// LoadDataset reads every stored pair back into the parallel-list form,
// ordered by conversation and position.
func LoadDataset(ctx context.Context, db *sql.DB) (model.Dataset, error) {
	rows, err := db.QueryContext(ctx, `SELECT prompt, completion FROM pairs ORDER BY conversation_id, position`)
	if err != nil {
		return model.Dataset{}, fmt.Errorf("query pairs: %w", err)
	}
	defer rows.Close()

	ds := model.Dataset{Prompt: []string{}, Completion: []string{}}
	for rows.Next() {
		var p model.TrainingPair
		if err := rows.Scan(&p.Prompt, &p.Completion); err != nil {
			return model.Dataset{}, fmt.Errorf("scan pair: %w", err)
		}
		ds.Append(p)
	}
	return ds, rows.Err()
}
