package crawl

import (
	"fmt"
	"strings"
)

// Category is a kind of downloadable artifact, Selector matches its download triggers.
type Category struct {
	Name      string `json:"name"`
	Tag       string `json:"tag"`
	Extension string `json:"extension"`
	Selector  string `json:"selector"`
}

func (c Category) Validate() error {
	switch {
	case c.Name == "":
		return fmt.Errorf("category without a name")
	case c.Tag == "" || strings.ContainsAny(c.Tag, `/\.`):
		return fmt.Errorf("category %s: invalid tag %q", c.Name, c.Tag)
	case c.Extension == "" || strings.ContainsAny(c.Extension, `/\.`):
		return fmt.Errorf("category %s: invalid extension %q", c.Name, c.Extension)
	case c.Selector == "":
		return fmt.Errorf("category %s: empty selector", c.Name)
	}
	return nil
}

// ArtifactName returns the output file name of the ordinal-th (1-based) of total artifacts of a
// category. A lone artifact is named after the identifier only, siblings get the category tag and
// their ordinal so they never collide.
func ArtifactName(identifier string, c Category, ordinal, total int) string {
	if total <= 1 {
		return fmt.Sprintf("%s.%s", identifier, c.Extension)
	}
	return fmt.Sprintf("%s_%s%d.%s", identifier, c.Tag, ordinal, c.Extension)
}
