package crawl

import (
	"context"
	"testing"
	"time"
	"wyniki-crawler/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

const (
	testLoginUrl  = testBaseUrl + "/login"
	testTwoFactor = testBaseUrl + "/uwierzytelnianie-dwuskladnikowe"
)

func testLoginOptions() LoginOptions {
	return LoginOptions{
		Url:              testLoginUrl,
		Username:         "jan.kowalski",
		Password:         "hunter2",
		UsernameSelector: testUserSelector,
		PasswordSelector: testPassSelector,
		SubmitSelector:   testSubmit,
		LandingPath:      "/zlecenia",
		TwoFactorPath:    "uwierzytelnianie-dwuskladnikowe",
		TwoFactorDetect:  100 * time.Millisecond,
		TwoFactorTimeout: 100 * time.Millisecond,
		LandingTimeout:   100 * time.Millisecond,
		PollInterval:     5 * time.Millisecond,
	}
}

func TestLogin(t *testing.T) {
	table := []struct {
		name         string
		locations    []string
		twoFactor    bool
		expectErr    error
		twoFactorOff bool
	}{
		{
			name:      "no verification step",
			locations: []string{testLoginUrl, testListUrl},
		},
		{
			name:      "verification completed",
			locations: []string{testLoginUrl, testTwoFactor, testTwoFactor, testListUrl},
			twoFactor: true,
		},
		{
			name:      "verification never completed",
			locations: []string{testLoginUrl, testTwoFactor},
			twoFactor: true,
			expectErr: ErrAuthenticationTimeout,
		},
		{
			name:      "landing never reached",
			locations: []string{testLoginUrl},
			expectErr: ErrLoginFailed,
		},
		{
			name:         "verification detection disabled",
			locations:    []string{testLoginUrl, testListUrl},
			twoFactorOff: true,
		},
	}

	for _, row := range table {
		t.Run(row.name, func(t *testing.T) {
			portal := listing(0)
			portal.locations = row.locations

			prompted := 0
			opts := testLoginOptions()
			opts.OnTwoFactor = func() { prompted++ }
			if row.twoFactorOff {
				opts.TwoFactorPath = ""
			}

			tel := &telemetry.RecordingAPI{}
			err := Login(context.Background(), portal, opts, tel)
			if row.expectErr != nil {
				require.ErrorIs(t, err, row.expectErr)
			} else {
				require.NoError(t, err)
			}

			if row.twoFactor {
				require.Equal(t, 1, prompted)
			} else {
				require.Zero(t, prompted)
			}

			require.Equal(t, "jan.kowalski", portal.filled[testUserSelector])
			require.Equal(t, "hunter2", portal.filled[testPassSelector])
			require.Equal(t, 1, portal.clickCount(testSubmit))
		})
	}
}

func TestLoginNavigateFailure(t *testing.T) {
	portal := listing(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Login(ctx, portal, testLoginOptions(), &telemetry.RecordingAPI{})
	require.ErrorIs(t, err, ErrLoginFailed)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, portal.filled)
}
