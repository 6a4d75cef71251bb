package crawl

import (
	"errors"
	"fmt"
)

var (
	// ErrIdentifierNotFound is the identifier extraction failure, it is always downgraded to a
	// fallback identifier.
	ErrIdentifierNotFound    = errors.New("identifier not found")
	ErrCaptureTimeout        = errors.New("download capture timed out")
	ErrAuthenticationTimeout = errors.New("two-factor authentication was not completed in time")
	ErrLoginFailed           = errors.New("login failed")
	ErrPageLimit             = errors.New("page limit reached")
	errWaitTimeout           = errors.New("wait timed out")
)

// EnumerationError is returned when a listing page could not be loaded, Page is 1-based.
type EnumerationError struct {
	Page int
	Err  error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("enumerate listing: page %d: %s", e.Page, e.Err.Error())
}

func (e *EnumerationError) Unwrap() error {
	return e.Err
}

// CategoryDiscoveryError means the download triggers of a category could not be looked up, the
// category is treated as having no artifacts.
type CategoryDiscoveryError struct {
	Category string
	Err      error
}

func (e *CategoryDiscoveryError) Error() string {
	return fmt.Sprintf("discover %s artifacts: %s", e.Category, e.Err.Error())
}

func (e *CategoryDiscoveryError) Unwrap() error {
	return e.Err
}

// ArtifactError is a failure to capture or persist a single artifact, Ordinal is 1-based.
type ArtifactError struct {
	Category string
	Ordinal  int
	FileName string
	Err      error
}

func (e *ArtifactError) Error() string {
	return fmt.Sprintf("%s artifact %d (%s): %s", e.Category, e.Ordinal, e.FileName, e.Err.Error())
}

func (e *ArtifactError) Unwrap() error {
	return e.Err
}

// ItemError means the detail view of an item could not be opened, nothing was acquired for it.
type ItemError struct {
	Url string
	Err error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("open item %s: %s", e.Url, e.Err.Error())
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
