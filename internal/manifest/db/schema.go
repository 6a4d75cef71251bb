package db

import (
	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type ArtifactStatus = string

const (
	STATUS_SAVED   ArtifactStatus = "saved"
	STATUS_SKIPPED ArtifactStatus = "skipped"
	STATUS_FAILED  ArtifactStatus = "failed"
)
