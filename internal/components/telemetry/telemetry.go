package telemetry

// API is what every component of the crawler reports through. The CLI backs it with slog (and
// otel metrics when configured), tests back it with RecordingAPI to assert on what was reported.
//
// note: fault injection point
type API interface {
	// ReportBroken reports a failure the user should know about: an order that could not be
	// opened, a category that could not be discovered, a listing page that would not load.
	//
	// `id` names the component and method that broke, never the specific order or file. Those go
	// into params. ex. a failed dialog click inside `Acquirer.Acquire` is `acquirer.open-dialog`
	// with the order url as a param. The ids live in `report_...` constants next to their use.
	//
	// Formatting rules:
	// 1) all lowercase
	// 2) `<struct>.<method>`, dashes between words
	// 3) no package path, NewScopedAPI adds it
	ReportBroken(id string, params ...any)

	// ReportWarning reports something that went wrong without losing data, like a retried page or
	// a fallback identifier. `id` follows the rules of ReportBroken.
	ReportWarning(id string, params ...any)

	// ReportDebug is only shown with --verbose.
	ReportDebug(msg string, params ...any)

	// ReportCount reports the current value of a count, values are points in time and are not
	// summed. `id` follows the rules of ReportBroken.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with a namespace, `crawl` + `runner.saved` is reported as
// `crawl.runner.saved`. Scoped ids stay valid metric instrument names.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scope(id string) string {
	return s.namespace + "." + id
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scope(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scope(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.namespace+": "+msg, params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scope(id), count)
}
