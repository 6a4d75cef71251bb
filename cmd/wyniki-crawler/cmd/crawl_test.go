package cmd

import (
	"errors"
	"testing"
	"wyniki-crawler/internal/crawl"

	"github.com/stretchr/testify/require"
)

func TestItemLine(t *testing.T) {
	ok := crawl.AcquisitionReport{
		Identifier: crawl.Identifier{Value: "402337694L"},
		Categories: []crawl.CategoryReport{{
			Artifacts: []crawl.ArtifactResult{{FileName: "402337694L.xml"}, {FileName: "402337694L.pdf", Skipped: true}},
		}},
	}
	require.Equal(t, "[1/3] 402337694L saved 1, skipped 1, failed 0", itemLine(1, 3, ok))

	fallback := crawl.AcquisitionReport{Identifier: crawl.Identifier{Value: "order_abc_1", Fallback: true}}
	require.Equal(t, "[2/3] order_abc_1 saved 0, skipped 0, failed 0 (identifier not found on the page)", itemLine(2, 3, fallback))

	failed := crawl.AcquisitionReport{
		Ref: crawl.ItemRef{Url: "https://wyniki.diag.pl/zlecenie/x"},
		Err: errors.New("navigate: reset"),
	}
	require.Equal(t, "[3/3] https://wyniki.diag.pl/zlecenie/x failed: navigate: reset", itemLine(3, 3, failed))
}
