package crawl

import "context"

// Element is a handle to a node returned by Driver.Query, it is only valid until the driver
// navigates away from the page it was found on.
type Element interface {
	Attr(name string) (string, bool)
}

// Download is a file captured after clicking a download trigger.
type Download struct {
	SuggestedName string
	Body          []byte
}

// Driver is the set of browser capabilities the crawler is written against. Selectors are CSS
// selectors, every method blocks until done or until ctx expires.
//
// note: fault injection point
type Driver interface {
	Navigate(ctx context.Context, url string) error
	// WaitStable blocks until the current page has finished loading and settled.
	WaitStable(ctx context.Context) error
	// WaitFor blocks until selector matches at least one node.
	WaitFor(ctx context.Context, selector string) error
	Location(ctx context.Context) (string, error)
	// HTML returns a snapshot of the current document.
	HTML(ctx context.Context) (string, error)
	// Query returns every node matching selector, no matches is not an error.
	Query(ctx context.Context, selector string) ([]Element, error)
	// QueryText returns the nodes matching selector whose whitespace normalized text is text.
	QueryText(ctx context.Context, selector, text string) ([]Element, error)
	Click(ctx context.Context, el Element) error
	Fill(ctx context.Context, selector, value string) error
	// ClickDownload clicks el and blocks until the download it triggers has completed.
	ClickDownload(ctx context.Context, el Element) (Download, error)
}
