package crawl

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractIdentifier(t *testing.T) {
	table := []struct {
		name     string
		html     string
		expected string
		err      error
	}{
		{
			name:     "barcode among other paragraphs",
			html:     `<p class="MuiTypography-body2">Lekarz</p><p class="MuiTypography-body2"> 402337694L </p>`,
			expected: "402337694L",
		},
		{
			name: "text containing an L is not enough",
			html: `<p class="MuiTypography-body2">Lipidogram</p>`,
			err:  ErrIdentifierNotFound,
		},
		{
			name: "barcode outside of the selector",
			html: `<span>383634902L</span>`,
			err:  ErrIdentifierNotFound,
		},
	}

	for _, row := range table {
		t.Run(row.name, func(t *testing.T) {
			id, err := ExtractIdentifier(row.html, testIdentifierRule)
			if row.err != nil {
				require.ErrorIs(t, err, row.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, row.expected, id)
		})
	}
}

func TestIdentifierRegistry(t *testing.T) {
	r := newIdentifierRegistry()
	ref := func(path string) ItemRef {
		return ItemRef{Url: testBaseUrl + path}
	}

	id, dup := r.assign(ref("/zlecenie/a"), "402337694L")
	require.False(t, dup)
	require.Equal(t, Identifier{Value: "402337694L"}, id)

	// the same item keeps its identifier
	id, dup = r.assign(ref("/zlecenie/a"), "402337694L")
	require.False(t, dup)
	require.Equal(t, "402337694L", id.Value)

	// another item with the same barcode is disambiguated
	id, dup = r.assign(ref("/zlecenie/b"), "402337694L")
	require.True(t, dup)
	require.Equal(t, "402337694L_2", id.Value)

	id, _ = r.assign(ref("/zlecenie/XyZ-0123456789abcdef"), "")
	require.True(t, id.Fallback)
	require.Equal(t, "order_XyZ-012345_1", id.Value)

	id, _ = r.assign(ref("/"), "")
	require.Equal(t, "unknown_2", id.Value)
}

func TestRefSlug(t *testing.T) {
	table := []struct {
		url      string
		expected string
	}{
		{url: "https://portal.test/zlecenie/abcdefghijklmnop", expected: "abcdefghij"},
		{url: "https://portal.test/zlecenie/a.b", expected: "a_b"},
		{url: "https://portal.test/", expected: ""},
		{url: "", expected: ""},
	}
	for _, row := range table {
		require.Equal(t, row.expected, refSlug(ItemRef{Url: row.url}), row.url)
	}
}
