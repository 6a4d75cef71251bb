package crawl

import (
	"context"
	"fmt"
	"time"
	"wyniki-crawler/internal/components/assert"
	"wyniki-crawler/internal/components/chrono"
	"wyniki-crawler/internal/components/telemetry"

	"golang.org/x/time/rate"
)

const (
	report_runner_enumerate = "runner.enumerate"
	report_runner_item      = "runner.item"
	report_runner_record    = "runner.record"
	report_runner_saved     = "runner.saved"
	report_runner_failed    = "runner.failed"
)

// Lister produces the full list of items to acquire.
type Lister interface {
	Enumerate(ctx context.Context) (EnumerationResult, error)
}

// ItemAcquirer acquires a single item, failures are carried in the report.
type ItemAcquirer interface {
	Acquire(ctx context.Context, ref ItemRef) AcquisitionReport
}

// Recorder keeps a record of runs outside of the output directory.
//
// note: fault injection point
type Recorder interface {
	StartRun(ctx context.Context, started time.Time) (runId string, err error)
	RecordItem(ctx context.Context, runId string, report AcquisitionReport) error
	FinishRun(ctx context.Context, runId string, summary RunSummary) error
}

type RunSummary struct {
	RunId       string
	Enumeration EnumerationResult
	// EnumerationErr is set when the listing could not be walked to its end.
	EnumerationErr error
	Reports        []AcquisitionReport
	Saved          int
	Skipped        int
	Failed         int
	// Stopped is set when a stop was requested before every item was processed.
	Stopped  bool
	Started  time.Time
	Finished time.Time
}

// Processed is how many items were attempted.
func (s RunSummary) Processed() int {
	return len(s.Reports)
}

type RunnerOptions struct {
	// ItemDelay is the minimum time between starting two items.
	ItemDelay time.Duration
	// AcquirePartial acquires the items of an incomplete listing instead of aborting.
	AcquirePartial bool
	// OnItem is called after every item with its 1-based position and the item count.
	OnItem func(n, total int, report AcquisitionReport)
}

// Runner enumerates every item and then acquires them one after another.
type Runner struct {
	lister   Lister
	acquirer ItemAcquirer
	recorder Recorder
	time     chrono.TimeAPI
	opts     RunnerOptions
	tel      telemetry.API
}

// NewRunner creates a Runner, recorder may be nil.
func NewRunner(
	lister Lister,
	acquirer ItemAcquirer,
	recorder Recorder,
	time chrono.TimeAPI,
	opts RunnerOptions,
	tel telemetry.API,
) Runner {
	assert.NotNil(lister)
	assert.NotNil(acquirer)
	assert.NotNil(time)
	assert.NotNil(tel)

	return Runner{
		lister:   lister,
		acquirer: acquirer,
		recorder: recorder,
		time:     time,
		opts:     opts,
		tel:      telemetry.NewScopedAPI("crawl", tel),
	}
}

// Run walks the listing, then acquires item after item. stop is checked between items only, the
// item in progress always completes. The returned error is only set when the run could not
// proceed: the listing failed (and partial acquisition is off, or nothing was gathered) or ctx
// was cancelled.
func (r Runner) Run(ctx context.Context, stop <-chan struct{}) (RunSummary, error) {
	summary := RunSummary{Started: r.time.Now()}
	runId := r.startRun(ctx, summary.Started)
	summary.RunId = runId

	finish := func() {
		summary.Finished = r.time.Now()
		r.finishRun(ctx, runId, summary)
	}

	listing, err := r.lister.Enumerate(ctx)
	summary.Enumeration = listing
	if err != nil {
		summary.EnumerationErr = err
		r.tel.ReportBroken(report_runner_enumerate, err, len(listing.Items))
		if !r.opts.AcquirePartial || len(listing.Items) == 0 {
			finish()
			return summary, err
		}
	}

	limit := rate.Inf
	if r.opts.ItemDelay > 0 {
		limit = rate.Every(r.opts.ItemDelay)
	}
	limiter := rate.NewLimiter(limit, 1)

	total := len(listing.Items)
	for i, ref := range listing.Items {
		if stopped(stop) {
			summary.Stopped = true
			break
		}
		err := limiter.Wait(ctx)
		if err != nil {
			finish()
			return summary, err
		}
		// a stop requested during the pause still counts as between items
		if stopped(stop) {
			summary.Stopped = true
			break
		}

		report := r.acquirer.Acquire(ctx, ref)
		summary.Reports = append(summary.Reports, report)
		summary.Saved += report.Saved()
		summary.Skipped += report.Skipped()
		summary.Failed += report.Failed()

		r.tel.ReportDebug(
			report_runner_item,
			fmt.Sprintf("%d/%d", i+1, total),
			report.Identifier.Value,
			report.Saved(),
			report.Skipped(),
			report.Failed(),
		)
		if r.recorder != nil && runId != "" {
			err := r.recorder.RecordItem(ctx, runId, report)
			if err != nil {
				r.tel.ReportWarning(report_runner_record, err, ref.Url)
			}
		}
		if r.opts.OnItem != nil {
			r.opts.OnItem(i+1, total, report)
		}

		if ctx.Err() != nil {
			finish()
			return summary, ctx.Err()
		}
	}

	r.tel.ReportCount(report_runner_saved, int64(summary.Saved))
	r.tel.ReportCount(report_runner_failed, int64(summary.Failed))
	finish()
	return summary, nil
}

func (r Runner) startRun(ctx context.Context, started time.Time) string {
	if r.recorder == nil {
		return ""
	}
	runId, err := r.recorder.StartRun(ctx, started)
	if err != nil {
		r.tel.ReportWarning(report_runner_record, fmt.Errorf("start run: %w", err))
		return ""
	}
	return runId
}

func (r Runner) finishRun(ctx context.Context, runId string, summary RunSummary) {
	if r.recorder == nil || runId == "" {
		return
	}
	// the run context may already be cancelled, the record should still be closed.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second*5)
	defer cancel()

	err := r.recorder.FinishRun(ctx, runId, summary)
	if err != nil {
		r.tel.ReportWarning(report_runner_record, fmt.Errorf("finish run: %w", err))
	}
}

func stopped(stop <-chan struct{}) bool {
	if stop == nil {
		return false
	}
	select {
	case <-stop:
		return true
	default:
	}
	return false
}
