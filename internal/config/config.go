package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"wyniki-crawler/internal/browser"
	"wyniki-crawler/internal/components/telemetry"
	"wyniki-crawler/internal/crawl"
	"wyniki-crawler/lib/configutil"
)

const (
	ENV_USERNAME = "WYNIKI_USERNAME"
	ENV_PASSWORD = "WYNIKI_PASSWORD"
)

type Selectors struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Submit   string `json:"submit"`

	// ListReady matches once the listing has rendered, with or without items.
	ListReady string `json:"list_ready"`
	Item      string `json:"item"`
	NextPage  string `json:"next_page"`

	DetailReady string `json:"detail_ready"`
	Dialog      string `json:"dialog"`
	DialogClose string `json:"dialog_close"`
	// DialogCloseText is the close button label used when DialogClose matches nothing.
	DialogCloseText string `json:"dialog_close_text"`
	Identifier      string `json:"identifier"`
}

// Config is read from a json5 file on top of Default, fields left out of the file keep their
// default. Durations are whole seconds unless the name says otherwise.
type Config struct {
	BaseUrl       string `json:"base_url"`
	LoginPath     string `json:"login_path"`
	ListPath      string `json:"list_path"`
	TwoFactorPath string `json:"two_factor_path"`

	OutputDir string `json:"output_dir"`
	// ExistingFiles is "overwrite" or "skip".
	ExistingFiles string `json:"existing_files"`
	// Manifest is the path of the sqlite run manifest, empty disables it.
	Manifest string `json:"manifest"`

	Headless     bool   `json:"headless"`
	ChromePath   string `json:"chrome_path"`
	UserDataDir  string `json:"user_data_dir"`
	ProtocolLogs bool   `json:"protocol_logs"`

	PageTimeout      int `json:"page_timeout"`
	PageAttempts     int `json:"page_attempts"`
	MaxPages         int `json:"max_pages"`
	SettleDelayMs    int `json:"settle_delay_ms"`
	DownloadTimeout  int `json:"download_timeout"`
	TwoFactorDetect  int `json:"two_factor_detect"`
	TwoFactorTimeout int `json:"two_factor_timeout"`
	LandingTimeout   int `json:"landing_timeout"`
	ItemDelayMs      int `json:"item_delay_ms"`

	// AcquirePartial acquires the items of a listing that could not be walked to its end.
	AcquirePartial bool `json:"acquire_partial"`

	IdentifierPattern string           `json:"identifier_pattern"`
	Selectors         Selectors        `json:"selectors"`
	Categories        []crawl.Category `json:"categories"`

	Otlp telemetry.OtlpConfig `json:"otlp"`
}

func Default() Config {
	return Config{
		BaseUrl:       "https://wyniki.diag.pl",
		LoginPath:     "/",
		ListPath:      "/zlecenia",
		TwoFactorPath: "uwierzytelnianie-dwuskladnikowe",

		OutputDir:     "downloads/xml_results",
		ExistingFiles: "overwrite",

		PageTimeout:      30,
		PageAttempts:     2,
		MaxPages:         500,
		SettleDelayMs:    1500,
		DownloadTimeout:  30,
		TwoFactorDetect:  5,
		TwoFactorTimeout: 120,
		LandingTimeout:   10,
		ItemDelayMs:      1000,

		IdentifierPattern: `^\d{5,}L$`,
		Selectors: Selectors{
			Username:        "input[name='accountId']",
			Password:        "input[name='password']",
			Submit:          "button[data-cy='submit-account-btn']",
			ListReady:       "main",
			Item:            "a[data-cy='view-result-btn']",
			NextPage:        "button[data-cy='pagination-next']:not([disabled])",
			DetailReady:     "button[data-cy='get-tests-btn']",
			Dialog:          "button[data-cy='get-tests-btn']",
			DialogClose:     "button[aria-label='close']",
			DialogCloseText: "Zamknij",
			Identifier:      "p.MuiTypography-body2",
		},
		Categories: []crawl.Category{
			{Name: "XML", Tag: "xml", Extension: "xml", Selector: "button[data-cy='download-file-btn-Xml']"},
			{Name: "PDF", Tag: "pdf", Extension: "pdf", Selector: "button[data-cy='download-file-btn-Pdf']"},
			{Name: "CSV", Tag: "csv", Extension: "csv", Selector: "button[aria-label='Pobierz listę badań']"},
		},
	}
}

// Load reads path over Default, a missing file is not an error. A relative path is looked up in
// the working directory and then in its parents.
func Load(path string) (Config, error) {
	read := configutil.ReadRecursively[Config]
	if filepath.IsAbs(path) {
		read = configutil.ReadConfig[Config]
	}
	config, err := read(path, Default())
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	return config, config.Validate()
}

func (c Config) Validate() error {
	var errs []error
	base, err := url.Parse(c.BaseUrl)
	if err != nil || base.Scheme == "" || base.Host == "" {
		errs = append(errs, fmt.Errorf("base_url %q is not an absolute url", c.BaseUrl))
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		errs = append(errs, fmt.Errorf("output_dir must be set"))
	}
	_, err = crawl.ParseExistingPolicy(c.ExistingFiles)
	if err != nil {
		errs = append(errs, err)
	}
	_, err = regexp.Compile(c.IdentifierPattern)
	if err != nil {
		errs = append(errs, fmt.Errorf("identifier_pattern: %w", err))
	}

	type field struct {
		name  string
		value int
	}
	for _, f := range []field{
		{"page_timeout", c.PageTimeout},
		{"page_attempts", c.PageAttempts},
		{"max_pages", c.MaxPages},
		{"download_timeout", c.DownloadTimeout},
		{"two_factor_timeout", c.TwoFactorTimeout},
		{"landing_timeout", c.LandingTimeout},
	} {
		if f.value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", f.name, f.value))
		}
	}
	if c.SettleDelayMs < 0 || c.ItemDelayMs < 0 || c.TwoFactorDetect < 0 {
		errs = append(errs, fmt.Errorf("delays cannot be negative"))
	}

	type selector struct {
		name  string
		value string
	}
	for _, s := range []selector{
		{"selectors.username", c.Selectors.Username},
		{"selectors.password", c.Selectors.Password},
		{"selectors.submit", c.Selectors.Submit},
		{"selectors.list_ready", c.Selectors.ListReady},
		{"selectors.item", c.Selectors.Item},
		{"selectors.next_page", c.Selectors.NextPage},
		{"selectors.detail_ready", c.Selectors.DetailReady},
		{"selectors.identifier", c.Selectors.Identifier},
	} {
		if strings.TrimSpace(s.value) == "" {
			errs = append(errs, fmt.Errorf("%s must be set", s.name))
		}
	}

	if len(c.Categories) == 0 {
		errs = append(errs, fmt.Errorf("at least one category must be configured"))
	}
	for _, category := range c.Categories {
		err := category.Validate()
		if err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func (c Config) resolve(path string) string {
	base, err := url.Parse(c.BaseUrl)
	if err != nil {
		return c.BaseUrl + path
	}
	ref, err := url.Parse(path)
	if err != nil {
		return c.BaseUrl + path
	}
	return base.ResolveReference(ref).String()
}

func (c Config) Enumerator() crawl.EnumeratorOptions {
	return crawl.EnumeratorOptions{
		ListUrl:       c.resolve(c.ListPath),
		ItemSelector:  c.Selectors.Item,
		NextSelector:  c.Selectors.NextPage,
		ReadySelector: c.Selectors.ListReady,
		PageTimeout:   seconds(c.PageTimeout),
		PageAttempts:  c.PageAttempts,
		MaxPages:      c.MaxPages,
	}
}

// Acquirer assumes Validate has passed.
func (c Config) Acquirer() crawl.AcquirerOptions {
	policy, _ := crawl.ParseExistingPolicy(c.ExistingFiles)
	return crawl.AcquirerOptions{
		ReadySelector:       c.Selectors.DetailReady,
		DialogSelector:      c.Selectors.Dialog,
		DialogCloseSelector: c.Selectors.DialogClose,
		DialogCloseText:     c.Selectors.DialogCloseText,
		Identifier: crawl.IdentifierRule{
			Selector: c.Selectors.Identifier,
			Pattern:  regexp.MustCompile(c.IdentifierPattern),
		},
		Categories:      c.Categories,
		PageTimeout:     seconds(c.PageTimeout),
		DownloadTimeout: seconds(c.DownloadTimeout),
		Policy:          policy,
	}
}

func (c Config) Login(username, password string) crawl.LoginOptions {
	return crawl.LoginOptions{
		Url:              c.resolve(c.LoginPath),
		Username:         username,
		Password:         password,
		UsernameSelector: c.Selectors.Username,
		PasswordSelector: c.Selectors.Password,
		SubmitSelector:   c.Selectors.Submit,
		LandingPath:      c.ListPath,
		TwoFactorPath:    c.TwoFactorPath,
		TwoFactorDetect:  seconds(c.TwoFactorDetect),
		TwoFactorTimeout: seconds(c.TwoFactorTimeout),
		LandingTimeout:   seconds(c.LandingTimeout),
		PollInterval:     250 * time.Millisecond,
	}
}

func (c Config) Runner() crawl.RunnerOptions {
	return crawl.RunnerOptions{
		ItemDelay:      millis(c.ItemDelayMs),
		AcquirePartial: c.AcquirePartial,
	}
}

func (c Config) Browser() browser.Options {
	return browser.Options{
		Headless:     c.Headless,
		ExecPath:     c.ChromePath,
		UserDataDir:  c.UserDataDir,
		SettleDelay:  millis(c.SettleDelayMs),
		ProtocolLogs: c.ProtocolLogs,
	}
}

// Credentials reads the portal credentials from the environment.
func Credentials() (username, password string, err error) {
	username = os.Getenv(ENV_USERNAME)
	password = os.Getenv(ENV_PASSWORD)
	if username == "" || password == "" {
		return "", "", fmt.Errorf("%s and %s must be set", ENV_USERNAME, ENV_PASSWORD)
	}
	return username, password, nil
}
