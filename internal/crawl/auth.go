package crawl

import (
	"context"
	"fmt"
	"strings"
	"time"
	"wyniki-crawler/internal/components/assert"
	"wyniki-crawler/internal/components/telemetry"
)

const (
	report_login            = "login"
	report_login_two_factor = "login.two-factor"
)

type LoginOptions struct {
	Url              string
	Username         string
	Password         string
	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string
	// LandingPath is a substring of the url reached once logged in.
	LandingPath string
	// TwoFactorPath is a substring of the url of the out-of-band verification step.
	TwoFactorPath string
	// TwoFactorDetect is how long to watch for the verification step after submitting.
	TwoFactorDetect time.Duration
	// TwoFactorTimeout bounds the wait for the user to complete verification.
	TwoFactorTimeout time.Duration
	// LandingTimeout bounds the wait for the landing page when there is no verification step.
	LandingTimeout time.Duration
	PollInterval   time.Duration
	// OnTwoFactor is called once when the verification step is detected, used to prompt the user.
	OnTwoFactor func()
}

// Login submits the login form and waits until the landing page is reached, blocking on the
// two-factor step if the portal asks for it. ErrAuthenticationTimeout is returned when the step
// is not completed within TwoFactorTimeout.
func Login(ctx context.Context, driver Driver, opts LoginOptions, tel telemetry.API) error {
	assert.NotNil(driver)
	assert.NotNil(tel)
	assert.NotEmptyStr(opts.Username)
	assert.NotEmptyStr(opts.Password)
	assert.NotEmptyStr(opts.LandingPath)
	assert.Positive("poll interval", opts.PollInterval)

	tel = telemetry.NewScopedAPI("crawl", tel)
	loginError := func(err error) error {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	err := submitLogin(ctx, driver, opts)
	if err != nil {
		tel.ReportBroken(report_login, err)
		return loginError(err)
	}

	reached := func(substr string) func(context.Context) (bool, error) {
		return func(ctx context.Context) (bool, error) {
			location, err := driver.Location(ctx)
			if err != nil {
				return false, err
			}
			return strings.Contains(location, substr), nil
		}
	}

	twoFactor := false
	if opts.TwoFactorPath != "" && opts.TwoFactorDetect > 0 {
		err = WaitUntil(ctx, opts.PollInterval, opts.TwoFactorDetect, func(ctx context.Context) (bool, error) {
			location, err := driver.Location(ctx)
			if err != nil {
				return false, err
			}
			twoFactor = strings.Contains(location, opts.TwoFactorPath)
			return twoFactor || strings.Contains(location, opts.LandingPath), nil
		})
		if err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if twoFactor {
		tel.ReportDebug(report_login_two_factor, "waiting for verification", opts.TwoFactorTimeout.String())
		if opts.OnTwoFactor != nil {
			opts.OnTwoFactor()
		}
		err = WaitUntil(ctx, opts.PollInterval, opts.TwoFactorTimeout, reached(opts.LandingPath))
		if isTimeout(err) {
			tel.ReportWarning(report_login_two_factor, err)
			return fmt.Errorf("%w (waited %s)", ErrAuthenticationTimeout, opts.TwoFactorTimeout)
		}
		return err
	}

	err = WaitUntil(ctx, opts.PollInterval, opts.LandingTimeout, reached(opts.LandingPath))
	if err != nil {
		tel.ReportBroken(report_login, err)
		return loginError(fmt.Errorf("landing page %s not reached: %w", opts.LandingPath, err))
	}
	return nil
}

func submitLogin(ctx context.Context, driver Driver, opts LoginOptions) error {
	ctx, cancel := context.WithTimeout(ctx, opts.LandingTimeout)
	defer cancel()

	err := driver.Navigate(ctx, opts.Url)
	if err != nil {
		return fmt.Errorf("navigate: %w", err)
	}
	err = driver.WaitStable(ctx)
	if err != nil {
		return fmt.Errorf("wait for login page: %w", err)
	}
	err = driver.WaitFor(ctx, opts.UsernameSelector)
	if err != nil {
		return fmt.Errorf("wait for login form: %w", err)
	}
	err = driver.Fill(ctx, opts.UsernameSelector, opts.Username)
	if err != nil {
		return fmt.Errorf("fill username: %w", err)
	}
	err = driver.Fill(ctx, opts.PasswordSelector, opts.Password)
	if err != nil {
		return fmt.Errorf("fill password: %w", err)
	}
	submit, err := driver.Query(ctx, opts.SubmitSelector)
	if err != nil {
		return fmt.Errorf("find submit: %w", err)
	}
	if len(submit) == 0 {
		return fmt.Errorf("no element matches %s", opts.SubmitSelector)
	}
	err = driver.Click(ctx, submit[0])
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return nil
}
