package db

import (
	"context"
	"database/sql"
)

const createArtifact = `-- name: CreateArtifact :exec
insert into artifact(run_id, item_url, identifier, fallback, category, ordinal, file_name, path, size, sha256, status, error, recorded_at)
values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type CreateArtifactParams struct {
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

func (q *Queries) CreateArtifact(ctx context.Context, arg CreateArtifactParams) error {
	_, err := q.db.ExecContext(ctx, createArtifact,
		arg.RunID,
		arg.ItemUrl,
		arg.Identifier,
		arg.Fallback,
		arg.Category,
		arg.Ordinal,
		arg.FileName,
		arg.Path,
		arg.Size,
		arg.Sha256,
		arg.Status,
		arg.Error,
		arg.RecordedAt,
	)
	return err
}

const createRun = `-- name: CreateRun :exec
insert into run(id, started_at) values (?, ?)
`

type CreateRunParams struct {
	ID        string
	StartedAt int64
}

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) error {
	_, err := q.db.ExecContext(ctx, createRun, arg.ID, arg.StartedAt)
	return err
}

const finishRun = `-- name: FinishRun :execrows
update run set
    finished_at = ?,
    pages = ?,
    items_found = ?,
    items_processed = ?,
    saved = ?,
    skipped = ?,
    failed = ?,
    stopped = ?,
    enumeration_error = ?
where id = ?
`

type FinishRunParams struct {
	FinishedAt       sql.NullInt64
	Pages            int64
	ItemsFound       int64
	ItemsProcessed   int64
	Saved            int64
	Skipped          int64
	Failed           int64
	Stopped          bool
	EnumerationError sql.NullString
	ID               string
}

func (q *Queries) FinishRun(ctx context.Context, arg FinishRunParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, finishRun,
		arg.FinishedAt,
		arg.Pages,
		arg.ItemsFound,
		arg.ItemsProcessed,
		arg.Saved,
		arg.Skipped,
		arg.Failed,
		arg.Stopped,
		arg.EnumerationError,
		arg.ID,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const getRun = `-- name: GetRun :one
select id, started_at, finished_at, pages, items_found, items_processed, saved, skipped, failed, stopped, enumeration_error from run
where id = ?
`

func (q *Queries) GetRun(ctx context.Context, id string) (Run, error) {
	row := q.db.QueryRowContext(ctx, getRun, id)
	var i Run
	err := row.Scan(
		&i.ID,
		&i.StartedAt,
		&i.FinishedAt,
		&i.Pages,
		&i.ItemsFound,
		&i.ItemsProcessed,
		&i.Saved,
		&i.Skipped,
		&i.Failed,
		&i.Stopped,
		&i.EnumerationError,
	)
	return i, err
}

const listRuns = `-- name: ListRuns :many
select id, started_at, finished_at, pages, items_found, items_processed, saved, skipped, failed, stopped, enumeration_error from run
order by started_at desc
limit ?
`

func (q *Queries) ListRuns(ctx context.Context, limit int64) ([]Run, error) {
	rows, err := q.db.QueryContext(ctx, listRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Run
	for rows.Next() {
		var i Run
		if err := rows.Scan(
			&i.ID,
			&i.StartedAt,
			&i.FinishedAt,
			&i.Pages,
			&i.ItemsFound,
			&i.ItemsProcessed,
			&i.Saved,
			&i.Skipped,
			&i.Failed,
			&i.Stopped,
			&i.EnumerationError,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const listRunArtifacts = `-- name: ListRunArtifacts :many
select id, run_id, item_url, identifier, fallback, category, ordinal, file_name, path, size, sha256, status, error, recorded_at from artifact
where run_id = ?
order by id
`

func (q *Queries) ListRunArtifacts(ctx context.Context, runID string) ([]Artifact, error) {
	rows, err := q.db.QueryContext(ctx, listRunArtifacts, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Artifact
	for rows.Next() {
		var i Artifact
		if err := rows.Scan(
			&i.ID,
			&i.RunID,
			&i.ItemUrl,
			&i.Identifier,
			&i.Fallback,
			&i.Category,
			&i.Ordinal,
			&i.FileName,
			&i.Path,
			&i.Size,
			&i.Sha256,
			&i.Status,
			&i.Error,
			&i.RecordedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
