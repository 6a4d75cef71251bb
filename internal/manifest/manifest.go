package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"wyniki-crawler/internal/components/assert"
	"wyniki-crawler/internal/components/chrono"
	"wyniki-crawler/internal/crawl"
	"wyniki-crawler/internal/manifest/db"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("internal/manifest")

var ErrRunNotFound = errors.New("run not found")

// Store records runs and the artifacts they produced in a sqlite database.
type Store struct {
	db   *sql.DB
	qry  *db.Queries
	time chrono.TimeAPI
}

// Open opens (creating if needed) the manifest database at path, ":memory:" is accepted.
func Open(ctx context.Context, path string, time chrono.TimeAPI) (Store, error) {
	assert.NotEmptyStr(path)
	assert.NotNil(time)

	database, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return Store{}, err
	}
	if path == ":memory:" {
		// every connection to :memory: is a different database
		database.SetMaxOpenConns(1)
	}
	_, err = database.ExecContext(ctx, db.Schema)
	if err != nil {
		database.Close()
		return Store{}, fmt.Errorf("apply schema: %w", err)
	}

	return NewStore(database, time), nil
}

func NewStore(database *sql.DB, time chrono.TimeAPI) Store {
	return Store{
		db:   database,
		qry:  db.New(database),
		time: time,
	}
}

func (s Store) Close() error {
	return s.db.Close()
}

func (s Store) StartRun(ctx context.Context, started time.Time) (string, error) {
	ctx, span := tracer.Start(ctx, "StartRun")
	defer span.End()

	runId := uuid.NewString()
	span.SetAttributes(attribute.String("run", runId))

	err := s.qry.CreateRun(ctx, db.CreateRunParams{
		ID:        runId,
		StartedAt: started.Unix(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return runId, nil
}

// RecordItem stores one row per saved, skipped or failed artifact of the item. An item that
// could not be opened is stored as a single failed row without a category.
func (s Store) RecordItem(ctx context.Context, runId string, report crawl.AcquisitionReport) error {
	ctx, span := tracer.Start(ctx, "RecordItem")
	defer span.End()

	span.SetAttributes(
		attribute.String("run", runId),
		attribute.String("identifier", report.Identifier.Value),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	now := s.time.Now().Unix()
	base := db.CreateArtifactParams{
		RunID:      runId,
		ItemUrl:    report.Ref.Url,
		Identifier: report.Identifier.Value,
		Fallback:   report.Identifier.Fallback,
		RecordedAt: now,
	}

	var rows []db.CreateArtifactParams
	if report.Err != nil {
		row := base
		row.Status = db.STATUS_FAILED
		row.Error = nullString(report.Err)
		rows = append(rows, row)
	}
	for _, c := range report.Categories {
		if c.DiscoveryErr != nil {
			row := base
			row.Category = c.Category.Name
			row.Status = db.STATUS_FAILED
			row.Error = nullString(c.DiscoveryErr)
			rows = append(rows, row)
		}
		for _, artifact := range c.Artifacts {
			row := base
			row.Category = c.Category.Name
			row.Ordinal = int64(artifact.Ordinal)
			row.FileName = artifact.FileName
			row.Path = artifact.Path
			row.Size = artifact.Size
			row.Sha256 = artifact.Sha256
			row.Status = db.STATUS_SAVED
			if artifact.Skipped {
				row.Status = db.STATUS_SKIPPED
			}
			rows = append(rows, row)
		}
		for _, failure := range c.Failures {
			row := base
			row.Category = c.Category.Name
			row.Status = db.STATUS_FAILED
			row.Error = nullString(failure)
			var artifactErr *crawl.ArtifactError
			if errors.As(failure, &artifactErr) {
				row.Ordinal = int64(artifactErr.Ordinal)
				row.FileName = artifactErr.FileName
			}
			rows = append(rows, row)
		}
	}

	for _, row := range rows {
		err := txqry.CreateArtifact(ctx, row)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (s Store) FinishRun(ctx context.Context, runId string, summary crawl.RunSummary) error {
	ctx, span := tracer.Start(ctx, "FinishRun")
	defer span.End()

	span.SetAttributes(attribute.String("run", runId))

	affected, err := s.qry.FinishRun(ctx, db.FinishRunParams{
		ID:               runId,
		FinishedAt:       sql.NullInt64{Int64: summary.Finished.Unix(), Valid: true},
		Pages:            int64(summary.Enumeration.Pages),
		ItemsFound:       int64(len(summary.Enumeration.Items)),
		ItemsProcessed:   int64(summary.Processed()),
		Saved:            int64(summary.Saved),
		Skipped:          int64(summary.Skipped),
		Failed:           int64(summary.Failed),
		Stopped:          summary.Stopped,
		EnumerationError: nullString(summary.EnumerationErr),
	})
	if err == nil && affected == 0 {
		err = fmt.Errorf("%w: %s", ErrRunNotFound, runId)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

type Run struct {
	Id             string
	Started        time.Time
	Finished       time.Time
	Pages          int
	ItemsFound     int
	ItemsProcessed int
	Saved          int
	Skipped        int
	Failed         int
	Stopped        bool
	EnumerationErr string
	// Finalized is false for a run that never finished, like one that crashed.
	Finalized bool
}

type Artifact struct {
	ItemUrl    string
	Identifier string
	Fallback   bool
	Category   string
	Ordinal    int
	FileName   string
	Path       string
	Size       int64
	Sha256     string
	Status     string
	Error      string
	Recorded   time.Time
}

// Runs lists the most recent runs first.
func (s Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	ctx, span := tracer.Start(ctx, "Runs")
	defer span.End()

	rows, err := s.qry.ListRuns(ctx, int64(limit))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	out := make([]Run, len(rows))
	for i, row := range rows {
		out[i] = runFromRow(row)
	}
	return out, nil
}

func (s Store) Run(ctx context.Context, runId string) (Run, error) {
	row, err := s.qry.GetRun(ctx, runId)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runId)
	}
	if err != nil {
		return Run{}, err
	}
	return runFromRow(row), nil
}

func (s Store) Artifacts(ctx context.Context, runId string) ([]Artifact, error) {
	ctx, span := tracer.Start(ctx, "Artifacts")
	defer span.End()

	rows, err := s.qry.ListRunArtifacts(ctx, runId)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	out := make([]Artifact, len(rows))
	for i, row := range rows {
		out[i] = Artifact{
			ItemUrl:    row.ItemUrl,
			Identifier: row.Identifier,
			Fallback:   row.Fallback,
			Category:   row.Category,
			Ordinal:    int(row.Ordinal),
			FileName:   row.FileName,
			Path:       row.Path,
			Size:       row.Size,
			Sha256:     row.Sha256,
			Status:     row.Status,
			Error:      row.Error.String,
			Recorded:   time.Unix(row.RecordedAt, 0),
		}
	}
	return out, nil
}

func runFromRow(row db.Run) Run {
	run := Run{
		Id:             row.ID,
		Started:        time.Unix(row.StartedAt, 0),
		Pages:          int(row.Pages),
		ItemsFound:     int(row.ItemsFound),
		ItemsProcessed: int(row.ItemsProcessed),
		Saved:          int(row.Saved),
		Skipped:        int(row.Skipped),
		Failed:         int(row.Failed),
		Stopped:        row.Stopped,
		EnumerationErr: row.EnumerationError.String,
		Finalized:      row.FinishedAt.Valid,
	}
	if row.FinishedAt.Valid {
		run.Finished = time.Unix(row.FinishedAt.Int64, 0)
	}
	return run
}

func nullString(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: err.Error(), Valid: true}
}
