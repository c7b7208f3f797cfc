package database

import (
	"bufio"
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// schema holds the tables and stored procedures, one statement per
// "-- statement-break" separated block.
//
//go:embed schema.sql
var schema string

const statementBreak = "-- statement-break"

// Migrate applies the embedded schema. Tables are created if missing and
// procedures are dropped and recreated, so it is safe to run repeatedly.
func Migrate(ctx context.Context, db *sql.DB, logger zerolog.Logger) error {
	stmts := splitStatements(schema)
	for i, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d (%s): %w", i+1, firstLine(stmt), err)
		}
		logger.Debug().Int("statement", i+1).Str("sql", firstLine(stmt)).Msg("applied")
	}
	logger.Info().Int("statements", len(stmts)).Msg("schema migrated")
	return nil
}

func splitStatements(src string) []string {
	var (
		stmts []string
		cur   strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			stmts = append(stmts, s)
		}
		cur.Reset()
	}
	sc := bufio.NewScanner(strings.NewReader(src))
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == statementBreak {
			flush()
			continue
		}
		cur.WriteString(line)
		cur.WriteByte('\n')
	}
	flush()
	return stmts
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
