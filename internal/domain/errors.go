package domain

import (
	"errors"
	"fmt"
)

// ValidationError marks input rejected before the pipeline is invoked.
type ValidationError struct {
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation: %s", e.Reason)
}

// FetchError indicates the page could not be loaded or harvested.
type FetchError struct {
	URL string
	Err error
}

func (e FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e FetchError) Unwrap() error {
	return e.Err
}

// DownloadCause narrows why video acquisition failed.
type DownloadCause string

const (
	DownloadRateLimited  DownloadCause = "rate_limited"
	DownloadAuthRequired DownloadCause = "auth_required"
	DownloadExhausted    DownloadCause = "all_strategies_failed"
)

// DownloadError indicates every download strategy failed for a URL.
type DownloadError struct {
	URL   string
	Cause DownloadCause
	Err   error
}

func (e DownloadError) Error() string {
	return fmt.Sprintf("download %s (%s): %v", e.URL, e.Cause, e.Err)
}

func (e DownloadError) Unwrap() error {
	return e.Err
}

// StructuringError indicates the reasoning backend returned unparsable
// output or refused the call. RateLimited flags quota exhaustion so it can
// be logged and counted separately; handling is identical either way.
type StructuringError struct {
	RateLimited bool
	Err         error
}

func (e StructuringError) Error() string {
	if e.RateLimited {
		return fmt.Sprintf("structuring rate-limited: %v", e.Err)
	}
	return fmt.Sprintf("structuring: %v", e.Err)
}

func (e StructuringError) Unwrap() error {
	return e.Err
}

// PipelineExhausted is surfaced when both the web and the video paths
// failed. Err preserves the root cause, which is the original web-path
// failure when both paths raised.
type PipelineExhausted struct {
	Err error
}

func (e PipelineExhausted) Error() string {
	return fmt.Sprintf("all extraction paths failed: %v", e.Err)
}

func (e PipelineExhausted) Unwrap() error {
	return e.Err
}

// ErrNotFound is returned by the repository for missing rows.
var ErrNotFound = errors.New("not found")

// ErrorLabel maps an error onto a short metric/log label.
func ErrorLabel(err error) string {
	if err == nil {
		return "none"
	}
	var validation ValidationError
	if errors.As(err, &validation) {
		return "validation"
	}
	var fetch FetchError
	if errors.As(err, &fetch) {
		return "fetch"
	}
	var download DownloadError
	if errors.As(err, &download) {
		return "download_" + string(download.Cause)
	}
	var structuring StructuringError
	if errors.As(err, &structuring) {
		if structuring.RateLimited {
			return "structuring_rate_limited"
		}
		return "structuring"
	}
	var exhausted PipelineExhausted
	if errors.As(err, &exhausted) {
		return "exhausted"
	}
	if errors.Is(err, ErrNotFound) {
		return "not_found"
	}
	return "other"
}
