package crawl

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	testBaseUrl       = "https://portal.test"
	testListUrl       = testBaseUrl + "/zlecenia"
	testItemSelector  = "a[data-cy='view-result-btn']"
	testNextSelector  = "button[data-cy='pagination-next']:not([disabled])"
	testReadySelector = "main"
	testDetailReady   = "button[data-cy='get-tests-btn']"
	testDialog        = "button[data-cy='get-tests-btn']"
	testDialogClose   = "button[aria-label='close']"
	testCloseText     = "Zamknij"
	testIdSelector    = "p.MuiTypography-body2"
	testUserSelector  = "input[name='accountId']"
	testPassSelector  = "input[name='password']"
	testSubmit        = "button[data-cy='submit-account-btn']"
)

var testCategories = []Category{
	{Name: "XML", Tag: "xml", Extension: "xml", Selector: "button[data-cy='download-file-btn-Xml']"},
	{Name: "PDF", Tag: "pdf", Extension: "pdf", Selector: "button[data-cy='download-file-btn-Pdf']"},
	{Name: "CSV", Tag: "csv", Extension: "csv", Selector: "button[aria-label='Pobierz listę badań']"},
}

var testIdentifierRule = IdentifierRule{
	Selector: testIdSelector,
	Pattern:  regexp.MustCompile(`^\d{5,}L$`),
}

type fakeDetail struct {
	// identifier is rendered in the page, empty renders an unrelated paragraph instead.
	identifier string
	// files per category name, each entry is one download trigger.
	files map[string][]string
	// queryErr fails discovery of a category.
	queryErr map[string]error
	// hang makes the n-th (1-based) download of a category block until its context expires.
	hang map[string]int
	// downloadErr fails the n-th (1-based) download of a category.
	downloadErr map[string]int
	dialogErr   error
	navigateErr error
	// closeByText renders the dialog close button with a text label only.
	closeByText bool
}

type fakeElement struct {
	selector string
	index    int
	attrs    map[string]string
}

func (e fakeElement) Attr(name string) (string, bool) {
	v, ok := e.attrs[name]
	return v, ok
}

// fakePortal is a scripted Driver, it serves a paginated listing and detail views.
type fakePortal struct {
	mutex sync.Mutex

	pages   [][]string
	details map[string]*fakeDetail

	// waitFailures makes the next n WaitFor calls on a listing page fail, keyed by 1-based page.
	waitFailures map[int]int
	// nextQueryErr fails the next-page lookup.
	nextQueryErr error
	// hangNavigate makes the next n listing navigations block until their context expires.
	hangNavigate int
	// hangNext makes the next n next-page clicks turn the page and then block until their context
	// expires.
	hangNext int

	// locations are returned by Location in order, the last one repeats.
	locations []string
	filled    map[string]string
	clicks    []string

	current string
	page    int
}

func newFakePortal(pages [][]string) *fakePortal {
	p := &fakePortal{
		pages:        pages,
		details:      map[string]*fakeDetail{},
		waitFailures: map[int]int{},
		filled:       map[string]string{},
	}
	return p
}

// listing builds a portal with the given item count per page, item urls are relative.
func listing(counts ...int) *fakePortal {
	var pages [][]string
	n := 0
	for _, count := range counts {
		var page []string
		for i := 0; i < count; i++ {
			n++
			page = append(page, fmt.Sprintf("/zlecenie/item%03d", n))
		}
		pages = append(pages, page)
	}
	return newFakePortal(pages)
}

func (p *fakePortal) detail(href string, d *fakeDetail) {
	p.details[testBaseUrl+href] = d
}

func (p *fakePortal) Navigate(ctx context.Context, url string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if url == testListUrl {
		if p.hangNavigate > 0 {
			p.hangNavigate--
			p.mutex.Unlock()
			<-ctx.Done()
			p.mutex.Lock()
			return ctx.Err()
		}
		p.current = "list"
		p.page = 0
		return nil
	}
	d, ok := p.details[url]
	if !ok {
		p.current = url
		return nil
	}
	if d.navigateErr != nil {
		return d.navigateErr
	}
	p.current = url
	return nil
}

func (p *fakePortal) WaitStable(ctx context.Context) error {
	return ctx.Err()
}

func (p *fakePortal) WaitFor(ctx context.Context, selector string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.current == "list" && p.waitFailures[p.page+1] > 0 {
		p.waitFailures[p.page+1]--
		return context.DeadlineExceeded
	}
	return ctx.Err()
}

func (p *fakePortal) Location(ctx context.Context) (string, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.locations) == 0 {
		return p.current, nil
	}
	location := p.locations[0]
	if len(p.locations) > 1 {
		p.locations = p.locations[1:]
	}
	return location, nil
}

func (p *fakePortal) HTML(ctx context.Context) (string, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var b strings.Builder
	b.WriteString("<html><body><main>")
	if p.current == "list" {
		if p.page < len(p.pages) {
			for _, href := range p.pages[p.page] {
				fmt.Fprintf(&b, `<a data-cy="view-result-btn" href="%s">Zobacz</a>`, href)
			}
		}
	} else if d, ok := p.details[p.current]; ok {
		b.WriteString(`<p class="MuiTypography-body2">Zlecenie</p>`)
		if d.identifier != "" {
			fmt.Fprintf(&b, `<p class="MuiTypography-body2">%s</p>`, d.identifier)
		}
	}
	b.WriteString("</main></body></html>")
	return b.String(), nil
}

func (p *fakePortal) Query(ctx context.Context, selector string) ([]Element, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	one := []Element{fakeElement{selector: selector, index: 0}}

	if p.current == "list" {
		if selector != testNextSelector {
			return nil, nil
		}
		if p.nextQueryErr != nil {
			return nil, p.nextQueryErr
		}
		if p.page+1 < len(p.pages) {
			return one, nil
		}
		return nil, nil
	}

	switch selector {
	case testSubmit:
		return one, nil
	case testDialog:
		if _, ok := p.details[p.current]; ok {
			return one, nil
		}
		return nil, nil
	case testDialogClose:
		if d, ok := p.details[p.current]; ok && !d.closeByText {
			return one, nil
		}
		return nil, nil
	}

	d, ok := p.details[p.current]
	if !ok {
		return nil, nil
	}
	for _, c := range testCategories {
		if c.Selector != selector {
			continue
		}
		if err := d.queryErr[c.Name]; err != nil {
			return nil, err
		}
		var out []Element
		for i := range d.files[c.Name] {
			out = append(out, fakeElement{
				selector: selector,
				index:    i,
				attrs:    map[string]string{"data-category": c.Name},
			})
		}
		return out, nil
	}
	return nil, nil
}

func (p *fakePortal) QueryText(ctx context.Context, selector, text string) ([]Element, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	d, ok := p.details[p.current]
	if !ok || !d.closeByText || selector != "button" || text != testCloseText {
		return nil, nil
	}
	return []Element{fakeElement{selector: "button:" + text}}, nil
}

func (p *fakePortal) Click(ctx context.Context, el Element) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	fe := el.(fakeElement)
	p.clicks = append(p.clicks, fe.selector)

	switch fe.selector {
	case testNextSelector:
		p.page++
		if p.hangNext > 0 {
			p.hangNext--
			p.mutex.Unlock()
			<-ctx.Done()
			p.mutex.Lock()
			return ctx.Err()
		}
	case testDialog:
		if d, ok := p.details[p.current]; ok && d.dialogErr != nil {
			return d.dialogErr
		}
	}
	return nil
}

func (p *fakePortal) Fill(ctx context.Context, selector, value string) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.filled[selector] = value
	return nil
}

func (p *fakePortal) ClickDownload(ctx context.Context, el Element) (Download, error) {
	p.mutex.Lock()
	fe := el.(fakeElement)
	d := p.details[p.current]
	category, _ := fe.Attr("data-category")
	p.clicks = append(p.clicks, fe.selector)
	p.mutex.Unlock()

	if d.hang[category] == fe.index+1 {
		<-ctx.Done()
		return Download{}, ctx.Err()
	}
	if d.downloadErr[category] == fe.index+1 {
		return Download{}, errors.New("download interrupted")
	}
	body := d.files[category][fe.index]
	return Download{SuggestedName: "file", Body: []byte(body)}, nil
}

func (p *fakePortal) clickCount(selector string) int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	n := 0
	for _, c := range p.clicks {
		if c == selector {
			n++
		}
	}
	return n
}

// memoryStore is an in-memory ArtifactStore.
type memoryStore struct {
	mutex sync.Mutex
	files map[string][]byte
	saves int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{files: map[string][]byte{}}
}

func (m *memoryStore) Exists(name string) (bool, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	_, ok := m.files[name]
	return ok, nil
}

func (m *memoryStore) Save(ctx context.Context, name string, body []byte) (string, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.files[name] = append([]byte(nil), body...)
	m.saves++
	return "/out/" + name, nil
}

func (m *memoryStore) names() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	var out []string
	for name := range m.files {
		out = append(out, name)
	}
	return out
}

func testEnumeratorOptions() EnumeratorOptions {
	return EnumeratorOptions{
		ListUrl:       testListUrl,
		ItemSelector:  testItemSelector,
		NextSelector:  testNextSelector,
		ReadySelector: testReadySelector,
		PageTimeout:   time.Second,
		PageAttempts:  2,
		MaxPages:      50,
	}
}

func testAcquirerOptions() AcquirerOptions {
	return AcquirerOptions{
		ReadySelector:       testDetailReady,
		DialogSelector:      testDialog,
		DialogCloseSelector: testDialogClose,
		DialogCloseText:     testCloseText,
		Identifier:          testIdentifierRule,
		Categories:          testCategories,
		PageTimeout:         time.Second,
		DownloadTimeout:     50 * time.Millisecond,
		Policy:              POLICY_OVERWRITE,
	}
}
