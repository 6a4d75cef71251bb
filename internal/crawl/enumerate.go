package crawl

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
	"wyniki-crawler/internal/components/assert"
	"wyniki-crawler/internal/components/telemetry"
	"wyniki-crawler/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_enumerator_load_page  = "enumerator.load-page"
	report_enumerator_next_page  = "enumerator.next-page"
	report_enumerator_duplicate  = "enumerator.duplicate"
	report_enumerator_page_items = "enumerator.page-items"
)

// ItemRef locates the detail view of one listed item. Page and Index are the 1-based listing
// position it was found at.
type ItemRef struct {
	Url   string
	Page  int
	Index int
}

type EnumerationResult struct {
	Items []ItemRef
	Pages int
	// Complete is false when enumeration stopped on an error, Items then holds what was gathered
	// before it.
	Complete bool
}

type EnumeratorOptions struct {
	ListUrl string
	// ItemSelector matches the anchors linking to detail views.
	ItemSelector string
	// NextSelector matches the enabled "next page" control only.
	NextSelector string
	// ReadySelector matches once a listing page has rendered, whether it has items or not.
	ReadySelector string
	PageTimeout   time.Duration
	// PageAttempts is how many times a page load is tried before giving up.
	PageAttempts int
	MaxPages     int
}

// Enumerator walks a paginated listing and collects every item reference on it.
type Enumerator struct {
	driver Driver
	opts   EnumeratorOptions
	base   *url.URL
	tel    telemetry.API
}

func NewEnumerator(driver Driver, opts EnumeratorOptions, tel telemetry.API) (Enumerator, error) {
	assert.NotNil(driver)
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.ItemSelector)
	assert.NotEmptyStr(opts.NextSelector)
	assert.NotEmptyStr(opts.ReadySelector)
	assert.Positive("page timeout", opts.PageTimeout)
	assert.Positive("page attempts", opts.PageAttempts)
	assert.Positive("max pages", opts.MaxPages)

	base, err := url.Parse(opts.ListUrl)
	if err != nil {
		return Enumerator{}, fmt.Errorf("parse list url: %w", err)
	}

	return Enumerator{
		driver: driver,
		opts:   opts,
		base:   base,
		tel:    telemetry.NewScopedAPI("crawl", tel),
	}, nil
}

// Enumerate returns every item of the listing in page order then on-page order. On error the
// items gathered so far are still returned with Complete unset.
func (e Enumerator) Enumerate(ctx context.Context) (EnumerationResult, error) {
	result := EnumerationResult{}
	seen := map[string]bool{}

	navigate := func(ctx context.Context) error {
		return e.driver.Navigate(ctx, e.opts.ListUrl)
	}
	action, retry := navigate, navigate

	for page := 1; ; page++ {
		refs, err := e.loadPage(ctx, page, action, retry)
		if err != nil {
			e.tel.ReportBroken(report_enumerator_load_page, err, page)
			return result, &EnumerationError{Page: page, Err: err}
		}
		result.Pages = page

		added := 0
		for _, ref := range refs {
			if seen[ref.Url] {
				e.tel.ReportWarning(report_enumerator_duplicate, ref.Url, page)
				continue
			}
			seen[ref.Url] = true
			added++
			ref.Index = added
			result.Items = append(result.Items, ref)
		}
		e.tel.ReportDebug(report_enumerator_page_items, page, added)

		next, err := e.driver.Query(ctx, e.opts.NextSelector)
		if err != nil {
			e.tel.ReportBroken(report_enumerator_next_page, err, page)
			return result, &EnumerationError{Page: page + 1, Err: fmt.Errorf("find next page control: %w", err)}
		}
		if len(next) == 0 {
			result.Complete = true
			return result, nil
		}
		if page >= e.opts.MaxPages {
			return result, &EnumerationError{Page: page + 1, Err: ErrPageLimit}
		}

		control := next[0]
		action = func(ctx context.Context) error {
			return e.driver.Click(ctx, control)
		}
		// the click already happened, reloading would start over at the first page so a retry
		// only waits again.
		retry = nil
	}
}

// loadPage runs action, waits for the page to settle and reads its items. On failure retry is run
// instead of action for the remaining attempts.
func (e Enumerator) loadPage(ctx context.Context, page int, action, retry func(context.Context) error) ([]ItemRef, error) {
	var err error
	for attempt := 1; attempt <= e.opts.PageAttempts; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		step := action
		if attempt > 1 {
			e.tel.ReportWarning(report_enumerator_load_page, fmt.Errorf("retrying page %d: %w", page, err))
			step = retry
		}

		var refs []ItemRef
		refs, err = e.attempt(ctx, page, step)
		if err == nil {
			return refs, nil
		}
	}
	return nil, err
}

// attempt bounds step and the read that follows it by PageTimeout.
func (e Enumerator) attempt(ctx context.Context, page int, step func(context.Context) error) ([]ItemRef, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.PageTimeout)
	defer cancel()

	if step != nil {
		err := step(ctx)
		if err != nil {
			return nil, err
		}
	}
	return e.readPage(ctx, page)
}

func (e Enumerator) readPage(ctx context.Context, page int) ([]ItemRef, error) {
	err := e.driver.WaitStable(ctx)
	if err != nil {
		return nil, fmt.Errorf("wait for page: %w", err)
	}
	err = e.driver.WaitFor(ctx, e.opts.ReadySelector)
	if err != nil {
		return nil, fmt.Errorf("wait for listing: %w", err)
	}
	contents, err := e.driver.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(contents))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}
	anchors := htmlutil.GetAnchors(e.base, doc.Find(e.opts.ItemSelector))

	refs := make([]ItemRef, len(anchors))
	for i, a := range anchors {
		refs[i] = ItemRef{Url: a.Url.String(), Page: page, Index: i + 1}
	}
	return refs, nil
}
