package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	"wyniki-crawler/internal/crawl"

	"github.com/stretchr/testify/require"
)

func write(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFile(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "config.json5"))
	require.NoError(t, err)
	require.Equal(t, Default(), config)
}

func TestLoadOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")
	write(t, path, `{
		// comments are allowed
		output_dir: "out",
		existing_files: "skip",
		max_pages: 20,
		selectors: { item: "a.order" },
	}`)
	write(t, filepath.Join(dir, "config.local.json5"), `{
		output_dir: "local-out",
		headless: true,
	}`)

	config, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "local-out", config.OutputDir)
	require.True(t, config.Headless)
	require.Equal(t, 20, config.MaxPages)
	require.Equal(t, "a.order", config.Selectors.Item)
	// untouched fields keep their defaults
	require.Equal(t, Default().Selectors.NextPage, config.Selectors.NextPage)
	require.Equal(t, Default().Categories, config.Categories)

	require.Equal(t, crawl.POLICY_SKIP, config.Acquirer().Policy)
}

func TestLoadInvalid(t *testing.T) {
	table := []struct {
		name     string
		contents string
	}{
		{name: "bad policy", contents: `{existing_files: "append"}`},
		{name: "bad pattern", contents: `{identifier_pattern: "("}`},
		{name: "relative base", contents: `{base_url: "wyniki.diag.pl"}`},
		{name: "bad category", contents: `{categories: [{name: "XML", tag: "", extension: "xml", selector: "b"}]}`},
		{name: "negative delay", contents: `{item_delay_ms: -1}`},
		{name: "syntax", contents: `{output_dir: `},
	}

	for _, row := range table {
		t.Run(row.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json5")
			write(t, path, row.contents)
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestOptions(t *testing.T) {
	config := Default()

	enumerator := config.Enumerator()
	require.Equal(t, "https://wyniki.diag.pl/zlecenia", enumerator.ListUrl)
	require.Equal(t, 30*time.Second, enumerator.PageTimeout)
	require.Equal(t, 2, enumerator.PageAttempts)
	require.Equal(t, 500, enumerator.MaxPages)

	acquirer := config.Acquirer()
	require.Equal(t, crawl.POLICY_OVERWRITE, acquirer.Policy)
	require.Len(t, acquirer.Categories, 3)
	require.True(t, acquirer.Identifier.Pattern.MatchString("402337694L"))
	require.False(t, acquirer.Identifier.Pattern.MatchString("Zlecenie"))
	require.Equal(t, "button[aria-label='close']", acquirer.DialogCloseSelector)
	require.Equal(t, "Zamknij", acquirer.DialogCloseText)

	login := config.Login("user", "pass")
	require.Equal(t, "https://wyniki.diag.pl/", login.Url)
	require.Equal(t, 5*time.Second, login.TwoFactorDetect)
	require.Equal(t, 2*time.Minute, login.TwoFactorTimeout)
	require.Equal(t, 10*time.Second, login.LandingTimeout)

	require.Equal(t, time.Second, config.Runner().ItemDelay)
	require.Equal(t, 1500*time.Millisecond, config.Browser().SettleDelay)
}

func TestCredentials(t *testing.T) {
	t.Setenv(ENV_USERNAME, "")
	t.Setenv(ENV_PASSWORD, "")
	_, _, err := Credentials()
	require.Error(t, err)

	t.Setenv(ENV_USERNAME, "jan")
	t.Setenv(ENV_PASSWORD, "secret")
	username, password, err := Credentials()
	require.NoError(t, err)
	require.Equal(t, "jan", username)
	require.Equal(t, "secret", password)
}
