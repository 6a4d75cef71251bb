package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"wyniki-crawler/internal/components/assert"
	"wyniki-crawler/internal/components/telemetry"
	"wyniki-crawler/internal/crawl"
	"wyniki-crawler/pkg/htmlutil"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("internal/browser")

const (
	report_download_events = "browser.download-events"
	report_download_cancel = "browser.download-cancel"
	report_download_clean  = "browser.download-clean"
)

var ErrDownloadCanceled = errors.New("download was canceled by the browser")

type Options struct {
	Headless bool
	// ExecPath overrides the chrome binary that is looked up on PATH.
	ExecPath string
	// UserDataDir keeps the browser profile between runs, a fresh profile is used when empty.
	UserDataDir string
	// DownloadDir receives downloads before they are read back, a temporary directory is used
	// when empty.
	DownloadDir string
	// SettleDelay is waited after the document finished loading so client side rendering can
	// catch up.
	SettleDelay time.Duration
	// ProtocolLogs reports every devtools message as debug output.
	ProtocolLogs bool
}

type downloadEvent struct {
	guid      string
	suggested string
	state     browser.DownloadProgressState
	begin     bool
}

// Chrome drives a single tab of a chrome instance over the devtools protocol.
type Chrome struct {
	ctx    context.Context
	cancel context.CancelFunc

	opts        Options
	downloadDir string
	ownsDir     bool

	// downloadMutex serializes ClickDownload, events are matched to the only pending download.
	downloadMutex sync.Mutex
	events        chan downloadEvent

	tel telemetry.API
}

// Launch starts the browser, it is closed once ctx is done or Close is called.
func Launch(ctx context.Context, opts Options, tel telemetry.API) (*Chrome, error) {
	assert.NotNil(tel)

	downloadDir := opts.DownloadDir
	ownsDir := false
	if downloadDir == "" {
		dir, err := os.MkdirTemp("", "wyniki-downloads-*")
		if err != nil {
			return nil, err
		}
		downloadDir = dir
		ownsDir = true
	}
	downloadDir, err := filepath.Abs(downloadDir)
	if err != nil {
		return nil, err
	}
	err = os.MkdirAll(downloadDir, 0o755)
	if err != nil {
		return nil, err
	}

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.WindowSize(1280, 900),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, telemetry.InstrumentBrowser(tel, opts.ProtocolLogs)...)

	c := &Chrome{
		ctx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
		opts:        opts,
		downloadDir: downloadDir,
		ownsDir:     ownsDir,
		events:      make(chan downloadEvent, 32),
		tel:         telemetry.NewScopedAPI("browser", tel),
	}

	chromedp.ListenTarget(tabCtx, c.onEvent)

	err = chromedp.Run(
		tabCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
			WithDownloadPath(downloadDir).
			WithEventsEnabled(true),
	)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return c, nil
}

func (c *Chrome) Close() {
	c.cancel()
	if c.ownsDir {
		err := os.RemoveAll(c.downloadDir)
		if err != nil {
			c.tel.ReportWarning(report_download_clean, err)
		}
	}
}

func (c *Chrome) onEvent(ev any) {
	var out downloadEvent
	switch ev := ev.(type) {
	case *browser.EventDownloadWillBegin:
		out = downloadEvent{guid: ev.GUID, suggested: ev.SuggestedFilename, begin: true}
	case *browser.EventDownloadProgress:
		if ev.State == browser.DownloadProgressStateInProgress {
			return
		}
		out = downloadEvent{guid: ev.GUID, state: ev.State}
	default:
		return
	}
	select {
	case c.events <- out:
	default:
		c.tel.ReportWarning(report_download_events, fmt.Errorf("event queue full, dropped %s", out.guid))
	}
}

// run executes actions on the tab, bounded by ctx. Cancelling ctx only aborts these actions, the
// tab stays open.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	ctx, span := tracer.Start(ctx, "Navigate")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	err := c.run(ctx, chromedp.Navigate(url))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Chrome) WaitStable(ctx context.Context) error {
	var complete bool
	return c.run(
		ctx,
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Poll(`document.readyState === "complete"`, &complete, chromedp.WithPollingInterval(100*time.Millisecond)),
		chromedp.Sleep(c.opts.SettleDelay),
	)
}

func (c *Chrome) WaitFor(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (c *Chrome) Location(ctx context.Context) (string, error) {
	var location string
	err := c.run(ctx, chromedp.Location(&location))
	return location, err
}

func (c *Chrome) HTML(ctx context.Context) (string, error) {
	var contents string
	err := c.run(ctx, chromedp.OuterHTML("html", &contents, chromedp.ByQuery))
	return contents, err
}

type element struct {
	node *cdp.Node
}

func (e element) Attr(name string) (string, bool) {
	return e.node.Attribute(name)
}

func (c *Chrome) Query(ctx context.Context, selector string) ([]crawl.Element, error) {
	var nodes []*cdp.Node
	err := c.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, err
	}
	out := make([]crawl.Element, len(nodes))
	for i, node := range nodes {
		out[i] = element{node: node}
	}
	return out, nil
}

func (c *Chrome) QueryText(ctx context.Context, selector, text string) ([]crawl.Element, error) {
	var nodes []*cdp.Node
	err := c.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, err
	}
	var out []crawl.Element
	for _, node := range nodes {
		var content string
		err := c.run(ctx, chromedp.TextContent([]cdp.NodeID{node.NodeID}, &content, chromedp.ByNodeID))
		if err != nil {
			return nil, err
		}
		if htmlutil.NormalizeText(content) == text {
			out = append(out, element{node: node})
		}
	}
	return out, nil
}

func (c *Chrome) Click(ctx context.Context, el crawl.Element) error {
	return c.run(ctx, chromedp.MouseClickNode(el.(element).node))
}

func (c *Chrome) Fill(ctx context.Context, selector, value string) error {
	return c.run(
		ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

// ClickDownload clicks el and waits for the download it starts to complete, the file is read back
// into memory and removed from the download directory.
func (c *Chrome) ClickDownload(ctx context.Context, el crawl.Element) (crawl.Download, error) {
	ctx, span := tracer.Start(ctx, "ClickDownload")
	defer span.End()

	c.downloadMutex.Lock()
	defer c.downloadMutex.Unlock()

	c.drainEvents()

	download, err := c.clickDownload(ctx, el)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return crawl.Download{}, err
	}
	span.SetAttributes(
		attribute.String("suggested_name", download.SuggestedName),
		attribute.Int("size", len(download.Body)),
	)
	return download, nil
}

func (c *Chrome) clickDownload(ctx context.Context, el crawl.Element) (crawl.Download, error) {
	err := c.Click(ctx, el)
	if err != nil {
		return crawl.Download{}, fmt.Errorf("click: %w", err)
	}

	var guid, suggested string
	for {
		select {
		case <-ctx.Done():
			if guid != "" {
				c.cancelDownload(guid)
			}
			return crawl.Download{}, ctx.Err()
		case ev := <-c.events:
			if ev.begin {
				if guid == "" {
					guid = ev.guid
					suggested = ev.suggested
				}
				continue
			}
			if ev.guid != guid {
				continue
			}
			if ev.state == browser.DownloadProgressStateCanceled {
				return crawl.Download{}, ErrDownloadCanceled
			}
			return c.readDownload(guid, suggested)
		}
	}
}

func (c *Chrome) readDownload(guid, suggested string) (crawl.Download, error) {
	// allowAndName saves the file under its guid
	path := filepath.Join(c.downloadDir, guid)
	body, err := os.ReadFile(path)
	if err != nil {
		return crawl.Download{}, fmt.Errorf("read download: %w", err)
	}
	err = os.Remove(path)
	if err != nil {
		c.tel.ReportWarning(report_download_clean, err, path)
	}
	return crawl.Download{SuggestedName: suggested, Body: body}, nil
}

func (c *Chrome) cancelDownload(guid string) {
	ctx, cancel := context.WithTimeout(c.ctx, time.Second*5)
	defer cancel()
	err := chromedp.Run(ctx, browser.CancelDownload(guid))
	if err != nil {
		c.tel.ReportWarning(report_download_cancel, err, guid)
	}
	os.Remove(filepath.Join(c.downloadDir, guid))
}

// drainEvents drops events of downloads that are no longer waited on.
func (c *Chrome) drainEvents() {
	for {
		select {
		case <-c.events:
		default:
			return
		}
	}
}

var _ crawl.Driver = (*Chrome)(nil)
