package crawl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArtifactName(t *testing.T) {
	xml := testCategories[0]
	pdf := testCategories[1]

	table := []struct {
		identifier string
		category   Category
		ordinal    int
		total      int
		expected   string
	}{
		{identifier: "402337694L", category: xml, ordinal: 1, total: 1, expected: "402337694L.xml"},
		{identifier: "383634902L", category: pdf, ordinal: 1, total: 3, expected: "383634902L_pdf1.pdf"},
		{identifier: "383634902L", category: pdf, ordinal: 2, total: 3, expected: "383634902L_pdf2.pdf"},
		{identifier: "383634902L", category: pdf, ordinal: 3, total: 3, expected: "383634902L_pdf3.pdf"},
		{identifier: "order_abc_1", category: xml, ordinal: 2, total: 2, expected: "order_abc_1_xml2.xml"},
	}

	for _, row := range table {
		require.Equal(t, row.expected, ArtifactName(row.identifier, row.category, row.ordinal, row.total))
	}
}

func TestCategoryValidate(t *testing.T) {
	require.NoError(t, testCategories[0].Validate())

	bad := []Category{
		{Tag: "xml", Extension: "xml", Selector: "a"},
		{Name: "XML", Tag: "", Extension: "xml", Selector: "a"},
		{Name: "XML", Tag: "x/y", Extension: "xml", Selector: "a"},
		{Name: "XML", Tag: "xml", Extension: ".xml", Selector: "a"},
		{Name: "XML", Tag: "xml", Extension: "xml"},
	}
	for _, c := range bad {
		require.Error(t, c.Validate(), "%+v", c)
	}
}
