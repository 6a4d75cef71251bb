package cmd

import (
	"context"
	"fmt"
	"wyniki-crawler/internal/browser"
	"wyniki-crawler/internal/components/telemetry"
	"wyniki-crawler/internal/config"
	"wyniki-crawler/internal/crawl"
)

const twoFactorBanner = `
============================================================
Two-factor authentication required.
Complete the verification in the browser window.
============================================================
`

// openSession launches the browser and logs into the portal.
func openSession(ctx context.Context, cfg config.Config, tel telemetry.API) (*browser.Chrome, error) {
	username, password, err := config.Credentials()
	if err != nil {
		return nil, err
	}

	chrome, err := browser.Launch(ctx, cfg.Browser(), tel)
	if err != nil {
		return nil, err
	}

	opts := cfg.Login(username, password)
	opts.OnTwoFactor = func() {
		fmt.Print(twoFactorBanner)
	}
	err = crawl.Login(ctx, chrome, opts, tel)
	if err != nil {
		chrome.Close()
		return nil, err
	}
	return chrome, nil
}
