package telemetry

import (
	"fmt"

	"github.com/chromedp/chromedp"
)

const (
	report_browser_log      = "browser.log"
	report_browser_error    = "browser.error"
	report_browser_protocol = "browser.protocol"
)

// InstrumentBrowser routes chromedp's logging callbacks into tel. When protocol is set every
// devtools message is also reported as debug output, this is very noisy.
func InstrumentBrowser(tel API, protocol bool) []chromedp.ContextOption {
	opts := []chromedp.ContextOption{
		chromedp.WithLogf(func(format string, args ...any) {
			tel.ReportDebug(report_browser_log, fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			tel.ReportWarning(report_browser_error, fmt.Errorf(format, args...))
		}),
	}
	if protocol {
		opts = append(opts, chromedp.WithDebugf(func(format string, args ...any) {
			tel.ReportDebug(report_browser_protocol, fmt.Sprintf(format, args...))
		}))
	}
	return opts
}
