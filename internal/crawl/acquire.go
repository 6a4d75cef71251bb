package crawl

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
	"wyniki-crawler/internal/components/assert"
	"wyniki-crawler/internal/components/telemetry"
)

const (
	report_acquirer_open_item          = "acquirer.open-item"
	report_acquirer_extract_identifier = "acquirer.extract-identifier"
	report_acquirer_open_dialog        = "acquirer.open-dialog"
	report_acquirer_close_dialog       = "acquirer.close-dialog"
	report_acquirer_discover           = "acquirer.discover"
	report_acquirer_capture            = "acquirer.capture"
	report_acquirer_persist            = "acquirer.persist"
)

// ExistingPolicy decides what happens when an artifact's file name already exists in the store.
type ExistingPolicy int

const (
	// POLICY_OVERWRITE downloads again and replaces the file, re-runs reflect the latest artifacts.
	POLICY_OVERWRITE ExistingPolicy = iota
	// POLICY_SKIP leaves the existing file alone and does not trigger the download.
	POLICY_SKIP
)

func ParseExistingPolicy(s string) (ExistingPolicy, error) {
	switch s {
	case "", "overwrite":
		return POLICY_OVERWRITE, nil
	case "skip":
		return POLICY_SKIP, nil
	}
	return POLICY_OVERWRITE, fmt.Errorf("unknown existing file policy %q", s)
}

func (p ExistingPolicy) String() string {
	if p == POLICY_SKIP {
		return "skip"
	}
	return "overwrite"
}

// ArtifactStore persists artifacts under flat file names.
type ArtifactStore interface {
	Exists(name string) (bool, error)
	// Save writes body under name atomically and returns the final path.
	Save(ctx context.Context, name string, body []byte) (string, error)
}

type AcquirerOptions struct {
	// ReadySelector matches once a detail view has rendered.
	ReadySelector string
	// DialogSelector opens the dialog holding the download triggers, empty when the triggers are
	// on the page itself.
	DialogSelector      string
	DialogCloseSelector string
	// DialogCloseText is the label of a close button, looked up when DialogCloseSelector matches
	// nothing.
	DialogCloseText string
	Identifier      IdentifierRule
	Categories      []Category
	PageTimeout     time.Duration
	DownloadTimeout time.Duration
	Policy          ExistingPolicy
}

// Acquirer downloads the artifacts of one item at a time. It keeps the identifiers handed out so
// far, so one Acquirer must be used for a whole run.
type Acquirer struct {
	driver Driver
	store  ArtifactStore
	opts   AcquirerOptions
	ids    *identifierRegistry
	tel    telemetry.API
}

func NewAcquirer(driver Driver, store ArtifactStore, opts AcquirerOptions, tel telemetry.API) (*Acquirer, error) {
	assert.NotNil(driver)
	assert.NotNil(store)
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.ReadySelector)
	assert.NotEmptyStr(opts.Identifier.Selector)
	assert.NotNil(opts.Identifier.Pattern)
	assert.Positive("page timeout", opts.PageTimeout)
	assert.Positive("download timeout", opts.DownloadTimeout)

	if len(opts.Categories) == 0 {
		return nil, fmt.Errorf("no artifact categories configured")
	}
	names := map[string]bool{}
	for _, c := range opts.Categories {
		err := c.Validate()
		if err != nil {
			return nil, err
		}
		if names[c.Name] {
			return nil, fmt.Errorf("duplicate category %s", c.Name)
		}
		names[c.Name] = true
	}

	return &Acquirer{
		driver: driver,
		store:  store,
		opts:   opts,
		ids:    newIdentifierRegistry(),
		tel:    telemetry.NewScopedAPI("crawl", tel),
	}, nil
}

// Acquire opens the item's detail view and downloads every artifact of every category. It never
// fails as a whole, every failure is recorded in the returned report.
func (a *Acquirer) Acquire(ctx context.Context, ref ItemRef) AcquisitionReport {
	report := AcquisitionReport{Ref: ref}

	contents, err := a.open(ctx, ref)
	if err != nil {
		a.tel.ReportBroken(report_acquirer_open_item, err, ref.Url)
		report.Err = &ItemError{Url: ref.Url, Err: err}
		return report
	}

	natural, err := ExtractIdentifier(contents, a.opts.Identifier)
	if err != nil {
		a.tel.ReportWarning(report_acquirer_extract_identifier, err, ref.Url)
		report.Warnings = append(report.Warnings, fmt.Errorf("extract identifier: %w", err))
	}
	id, duplicate := a.ids.assign(ref, natural)
	if duplicate {
		err := fmt.Errorf("identifier %s already used in this run, saving as %s", natural, id.Value)
		a.tel.ReportWarning(report_acquirer_extract_identifier, err, ref.Url)
		report.Warnings = append(report.Warnings, err)
	}
	report.Identifier = id

	dialogErr := a.openDialog(ctx)
	if dialogErr != nil {
		a.tel.ReportBroken(report_acquirer_open_dialog, dialogErr, id.Value)
	}
	for _, c := range a.opts.Categories {
		report.Categories = append(report.Categories, a.acquireCategory(ctx, id.Value, c, dialogErr))
	}
	a.closeDialog(ctx)

	return report
}

func (a *Acquirer) open(ctx context.Context, ref ItemRef) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.opts.PageTimeout)
	defer cancel()

	err := a.driver.Navigate(ctx, ref.Url)
	if err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	err = a.driver.WaitStable(ctx)
	if err != nil {
		return "", fmt.Errorf("wait for page: %w", err)
	}
	err = a.driver.WaitFor(ctx, a.opts.ReadySelector)
	if err != nil {
		return "", fmt.Errorf("wait for detail view: %w", err)
	}
	contents, err := a.driver.HTML(ctx)
	if err != nil {
		return "", fmt.Errorf("read detail view: %w", err)
	}
	return contents, nil
}

func (a *Acquirer) openDialog(ctx context.Context) error {
	if a.opts.DialogSelector == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.opts.PageTimeout)
	defer cancel()

	triggers, err := a.driver.Query(ctx, a.opts.DialogSelector)
	if err != nil {
		return fmt.Errorf("find dialog trigger: %w", err)
	}
	if len(triggers) == 0 {
		return fmt.Errorf("no element matches %s", a.opts.DialogSelector)
	}
	err = a.driver.Click(ctx, triggers[0])
	if err != nil {
		return fmt.Errorf("click dialog trigger: %w", err)
	}
	err = a.driver.WaitStable(ctx)
	if err != nil {
		return fmt.Errorf("wait for dialog: %w", err)
	}
	return nil
}

func (a *Acquirer) closeDialog(ctx context.Context) {
	if a.opts.DialogCloseSelector == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, a.opts.PageTimeout)
	defer cancel()

	controls, err := a.driver.Query(ctx, a.opts.DialogCloseSelector)
	if err == nil && len(controls) == 0 && a.opts.DialogCloseText != "" {
		controls, err = a.driver.QueryText(ctx, "button", a.opts.DialogCloseText)
	}
	if err == nil && len(controls) > 0 {
		err = a.driver.Click(ctx, controls[0])
	}
	if err != nil {
		a.tel.ReportWarning(report_acquirer_close_dialog, err)
	}
}

func (a *Acquirer) acquireCategory(ctx context.Context, identifier string, c Category, dialogErr error) CategoryReport {
	report := CategoryReport{Category: c}
	if dialogErr != nil {
		report.DiscoveryErr = &CategoryDiscoveryError{Category: c.Name, Err: dialogErr}
		return report
	}

	queryCtx, cancel := context.WithTimeout(ctx, a.opts.PageTimeout)
	triggers, err := a.driver.Query(queryCtx, c.Selector)
	cancel()
	if err != nil {
		a.tel.ReportBroken(report_acquirer_discover, err, identifier, c.Name)
		report.DiscoveryErr = &CategoryDiscoveryError{Category: c.Name, Err: err}
		return report
	}
	report.Discovered = len(triggers)

	for i, trigger := range triggers {
		ordinal := i + 1
		name := ArtifactName(identifier, c, ordinal, len(triggers))

		result, err := a.acquireArtifact(ctx, trigger, name)
		if err != nil {
			report.Failures = append(report.Failures, &ArtifactError{
				Category: c.Name,
				Ordinal:  ordinal,
				FileName: name,
				Err:      err,
			})
			continue
		}
		result.Category = c.Name
		result.Ordinal = ordinal
		report.Artifacts = append(report.Artifacts, result)
	}

	return report
}

func (a *Acquirer) acquireArtifact(ctx context.Context, trigger Element, name string) (ArtifactResult, error) {
	if a.opts.Policy == POLICY_SKIP {
		exists, err := a.store.Exists(name)
		if err != nil {
			a.tel.ReportWarning(report_acquirer_persist, fmt.Errorf("check existing: %w", err), name)
		}
		if err == nil && exists {
			return ArtifactResult{FileName: name, Skipped: true}, nil
		}
	}

	downloadCtx, cancel := context.WithTimeout(ctx, a.opts.DownloadTimeout)
	download, err := a.driver.ClickDownload(downloadCtx, trigger)
	timedOut := errors.Is(downloadCtx.Err(), context.DeadlineExceeded)
	cancel()
	if err != nil {
		if timedOut || isTimeout(err) {
			err = fmt.Errorf("%w: %w", ErrCaptureTimeout, err)
		}
		a.tel.ReportWarning(report_acquirer_capture, err, name)
		return ArtifactResult{}, err
	}

	path, err := a.store.Save(ctx, name, download.Body)
	if err != nil {
		a.tel.ReportBroken(report_acquirer_persist, err, name)
		return ArtifactResult{}, fmt.Errorf("save: %w", err)
	}

	sum := sha256.Sum256(download.Body)
	return ArtifactResult{
		FileName: name,
		Path:     path,
		Size:     int64(len(download.Body)),
		Sha256:   hex.EncodeToString(sum[:]),
	}, nil
}
