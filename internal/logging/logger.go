package logging

import (
	"log/slog"
	"os"

	"gorm.io/gorm"
)

// Setup initializes the global slog logger: JSON to stdout, plus a batched
// PostgreSQL sink for ERROR and above when a DB is supplied. The returned
// handler must be stopped on shutdown so the final batch flushes.
func Setup(db *gorm.DB) *PGHandler {
	stdout := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})

	if db == nil {
		slog.SetDefault(slog.New(stdout))
		return nil
	}

	pg := NewPGHandler(db)
	slog.SetDefault(slog.New(NewMultiHandler(stdout, pg)))
	return pg
}
