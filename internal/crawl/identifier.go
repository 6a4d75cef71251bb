package crawl

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
	"wyniki-crawler/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Identifier is the business key artifacts are named after. Fallback is set when the page did not
// yield one and a generated identifier was substituted.
type Identifier struct {
	Value    string
	Fallback bool
}

// IdentifierRule finds the identifier on a detail page, the first text under Selector matching
// Pattern wins.
type IdentifierRule struct {
	Selector string
	Pattern  *regexp.Regexp
}

// ExtractIdentifier applies rule to a detail page snapshot.
func ExtractIdentifier(pageHtml string, rule IdentifierRule) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(pageHtml))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	for _, text := range htmlutil.Texts(doc.Find(rule.Selector)) {
		if rule.Pattern.MatchString(text) {
			return text, nil
		}
	}
	return "", ErrIdentifierNotFound
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func sanitizeName(s string) string {
	return strings.Trim(unsafeNameChars.ReplaceAllString(s, "_"), "_")
}

// identifierRegistry hands out identifiers that are unique within a run, an item asked for twice
// gets the same identifier back.
type identifierRegistry struct {
	byRef map[string]Identifier
	used  map[string]bool
	seq   int
}

func newIdentifierRegistry() *identifierRegistry {
	return &identifierRegistry{
		byRef: map[string]Identifier{},
		used:  map[string]bool{},
	}
}

// assign returns the identifier for ref. An empty natural value produces a fallback, a natural
// value already taken by another item gets a numeric suffix. duplicate reports the latter.
func (r *identifierRegistry) assign(ref ItemRef, natural string) (id Identifier, duplicate bool) {
	if existing, ok := r.byRef[ref.Url]; ok {
		return existing, false
	}

	natural = sanitizeName(natural)
	if natural == "" {
		id = Identifier{Value: r.fallback(ref), Fallback: true}
	} else {
		id = Identifier{Value: natural}
		for n := 2; r.used[id.Value]; n++ {
			id.Value = fmt.Sprintf("%s_%d", natural, n)
			duplicate = true
		}
	}

	r.used[id.Value] = true
	r.byRef[ref.Url] = id
	return id, duplicate
}

func (r *identifierRegistry) fallback(ref ItemRef) string {
	prefix := "unknown"
	if slug := refSlug(ref); slug != "" {
		prefix = "order_" + slug
	}
	for {
		r.seq++
		candidate := fmt.Sprintf("%s_%d", prefix, r.seq)
		if !r.used[candidate] {
			return candidate
		}
	}
}

// refSlug is the first 10 characters of the last path segment of the item url.
func refSlug(ref ItemRef) string {
	parsed, err := url.Parse(ref.Url)
	if err != nil {
		return ""
	}
	segment := sanitizeName(path.Base(parsed.Path))
	if segment == "" || segment == "." {
		return ""
	}
	if len(segment) > 10 {
		segment = segment[:10]
	}
	return strings.Trim(segment, "_")
}
