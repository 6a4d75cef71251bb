package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"
	"wyniki-crawler/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

const testPage = `<html><body>
<main>
	<input name="accountId">
	<button data-cy="download-file-btn-Pdf" onclick="location.href='/file/1'">one</button>
	<button data-cy="download-file-btn-Pdf" onclick="location.href='/file/2'">two</button>
	<a class="item" href="/zlecenie/1">Zobacz</a>
	<button class="close">  Zamknij </button>
	<button class="close">Anuluj</button>
</main>
</body></html>`

func findChrome(t *testing.T) {
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		_, err := exec.LookPath(name)
		if err == nil {
			return
		}
	}
	t.Skip("no chrome installation found")
}

func serve(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testPage)
	})
	mux.HandleFunc("/file/{n}", func(w http.ResponseWriter, r *http.Request) {
		n := r.PathValue("n")
		w.Header().Set("content-type", "application/pdf")
		w.Header().Set("content-disposition", fmt.Sprintf(`attachment; filename="wynik-%s.pdf"`, n))
		fmt.Fprintf(w, "%%PDF-%s", n)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestChrome(t *testing.T) {
	if testing.Short() {
		t.Skip("launches a browser")
	}
	findChrome(t)
	server := serve(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	chrome, err := Launch(ctx, Options{Headless: true, SettleDelay: 50 * time.Millisecond}, telemetry.SlogAPI{})
	require.NoError(t, err)
	defer chrome.Close()

	require.NoError(t, chrome.Navigate(ctx, server.URL))
	require.NoError(t, chrome.WaitStable(ctx))
	require.NoError(t, chrome.WaitFor(ctx, "main"))

	location, err := chrome.Location(ctx)
	require.NoError(t, err)
	require.Equal(t, server.URL+"/", location)

	contents, err := chrome.HTML(ctx)
	require.NoError(t, err)
	require.Contains(t, contents, `href="/zlecenie/1"`)

	missing, err := chrome.Query(ctx, "button.missing")
	require.NoError(t, err)
	require.Empty(t, missing)

	anchors, err := chrome.Query(ctx, "a.item")
	require.NoError(t, err)
	require.Len(t, anchors, 1)
	href, ok := anchors[0].Attr("href")
	require.True(t, ok)
	require.Equal(t, "/zlecenie/1", href)

	closers, err := chrome.QueryText(ctx, "button", "Zamknij")
	require.NoError(t, err)
	require.Len(t, closers, 1)
	class, _ := closers[0].Attr("class")
	require.Equal(t, "close", class)

	require.NoError(t, chrome.Fill(ctx, "input[name='accountId']", "jan"))

	triggers, err := chrome.Query(ctx, "button[data-cy='download-file-btn-Pdf']")
	require.NoError(t, err)
	require.Len(t, triggers, 2)

	for i, trigger := range triggers {
		downloadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		download, err := chrome.ClickDownload(downloadCtx, trigger)
		cancel()
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("wynik-%d.pdf", i+1), download.SuggestedName)
		require.Equal(t, fmt.Sprintf("%%PDF-%d", i+1), string(download.Body))
	}
}
