package db

import (
	"database/sql"
)

type Artifact struct {
	ID         int64
	RunID      string
	ItemUrl    string
	Identifier string
	Fallback   bool
	Category   string
	Ordinal    int64
	FileName   string
	Path       string
	Size       int64
	Sha256     string
	Status     string
	Error      sql.NullString
	RecordedAt int64
}

type Run struct {
	ID               string
	StartedAt        int64
	FinishedAt       sql.NullInt64
	Pages            int64
	ItemsFound       int64
	ItemsProcessed   int64
	Saved            int64
	Skipped          int64
	Failed           int64
	Stopped          bool
	EnumerationError sql.NullString
}
