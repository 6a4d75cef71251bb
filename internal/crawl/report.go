package crawl

// ArtifactResult describes one artifact that was saved or skipped.
type ArtifactResult struct {
	Category string
	Ordinal  int
	FileName string
	Path     string
	Size     int64
	Sha256   string
	// Skipped is set when the file already existed and the existing-file policy is skip.
	Skipped bool
}

type CategoryReport struct {
	Category   Category
	Discovered int
	Artifacts  []ArtifactResult
	Failures   []error
	// DiscoveryErr is set when the triggers of this category could not be looked up.
	DiscoveryErr error
}

func (c CategoryReport) Saved() int {
	n := 0
	for _, a := range c.Artifacts {
		if !a.Skipped {
			n++
		}
	}
	return n
}

func (c CategoryReport) Skipped() int {
	return len(c.Artifacts) - c.Saved()
}

// Failed counts failed artifacts, plus one for a failed discovery.
func (c CategoryReport) Failed() int {
	n := len(c.Failures)
	if c.DiscoveryErr != nil {
		n++
	}
	return n
}

// AcquisitionReport is everything that happened while acquiring one item.
type AcquisitionReport struct {
	Ref        ItemRef
	Identifier Identifier
	Categories []CategoryReport
	// Warnings are soft conditions that did not prevent acquisition, like a fallback identifier.
	Warnings []error
	// Err is set when the item could not be opened at all.
	Err error
}

func (r AcquisitionReport) Category(name string) (CategoryReport, bool) {
	for _, c := range r.Categories {
		if c.Category.Name == name {
			return c, true
		}
	}
	return CategoryReport{}, false
}

func (r AcquisitionReport) Saved() int {
	n := 0
	for _, c := range r.Categories {
		n += c.Saved()
	}
	return n
}

func (r AcquisitionReport) Skipped() int {
	n := 0
	for _, c := range r.Categories {
		n += c.Skipped()
	}
	return n
}

func (r AcquisitionReport) Failed() int {
	n := 0
	if r.Err != nil {
		n++
	}
	for _, c := range r.Categories {
		n += c.Failed()
	}
	return n
}

// Errors returns every hard and soft failure of the item, warnings excluded.
func (r AcquisitionReport) Errors() []error {
	var out []error
	if r.Err != nil {
		out = append(out, r.Err)
	}
	for _, c := range r.Categories {
		if c.DiscoveryErr != nil {
			out = append(out, c.DiscoveryErr)
		}
		out = append(out, c.Failures...)
	}
	return out
}
