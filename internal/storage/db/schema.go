package db

import (
	"context"
	"fmt"
)

// The subject check makes "only thread roots carry a subject" a property of
// the table, not of the callers.
var schema = map[string][]string{
	DriverSQLite: {
		`CREATE TABLE IF NOT EXISTS posts (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			board     TEXT    NOT NULL DEFAULT '1',
			parent    INTEGER NOT NULL DEFAULT 0,
			name      TEXT    NOT NULL DEFAULT 'Anonymous',
			subject   TEXT    NOT NULL DEFAULT '',
			message   TEXT    NOT NULL,
			image     TEXT    NOT NULL DEFAULT '',
			thumb     TEXT    NOT NULL DEFAULT '',
			timestamp INTEGER NOT NULL,
			bumped    INTEGER NOT NULL,
			CHECK (subject = '' OR parent = 0)
		)`,
		`CREATE INDEX IF NOT EXISTS posts_board_threads ON posts (board, parent, bumped)`,
		`CREATE INDEX IF NOT EXISTS posts_replies ON posts (parent, timestamp)`,
		// ids handed out outside the insert transaction, see allocateId
		`CREATE TABLE IF NOT EXISTS post_seq (
			name  TEXT    PRIMARY KEY,
			value INTEGER NOT NULL
		)`,
		`INSERT OR IGNORE INTO post_seq (name, value) VALUES ('posts', 0)`,
	},
	DriverMySQL: {
		`CREATE TABLE IF NOT EXISTS posts (
			id        BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
			board     VARCHAR(16)  NOT NULL DEFAULT '1',
			parent    BIGINT UNSIGNED NOT NULL DEFAULT 0,
			name      VARCHAR(35)  NOT NULL DEFAULT 'Anonymous',
			subject   VARCHAR(100) NOT NULL DEFAULT '',
			message   TEXT         NOT NULL,
			image     VARCHAR(255) NOT NULL DEFAULT '',
			thumb     VARCHAR(255) NOT NULL DEFAULT '',
			timestamp BIGINT       NOT NULL,
			bumped    BIGINT       NOT NULL,
			INDEX posts_board_threads (board, parent, bumped),
			INDEX posts_replies (parent, timestamp),
			CONSTRAINT posts_reply_subject CHECK (subject = '' OR parent = 0)
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	},
	DriverPostgres: {
		`CREATE TABLE IF NOT EXISTS posts (
			id        BIGSERIAL PRIMARY KEY,
			board     TEXT   NOT NULL DEFAULT '1',
			parent    BIGINT NOT NULL DEFAULT 0,
			name      TEXT   NOT NULL DEFAULT 'Anonymous',
			subject   TEXT   NOT NULL DEFAULT '',
			message   TEXT   NOT NULL,
			image     TEXT   NOT NULL DEFAULT '',
			thumb     TEXT   NOT NULL DEFAULT '',
			timestamp BIGINT NOT NULL,
			bumped    BIGINT NOT NULL,
			CONSTRAINT posts_reply_subject CHECK (subject = '' OR parent = 0)
		)`,
		`CREATE INDEX IF NOT EXISTS posts_board_threads ON posts (board, parent, bumped)`,
		`CREATE INDEX IF NOT EXISTS posts_replies ON posts (parent, timestamp)`,
	},
}

// Migrate creates the posts table and its indexes when missing.
func (s *Storage) Migrate(ctx context.Context) error {
	statements, ok := schema[s.driver]
	if !ok {
		return fmt.Errorf("no schema for driver %q", s.driver)
	}
	// one statement per Exec, the mysql driver rejects multi statements by default
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
