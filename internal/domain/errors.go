package domain

import (
	"fmt"
	"sort"
	"strings"

	platformerrors "github.com/jmgilman/go/errors"
	"go.uber.org/multierr"
)

// ErrInvalidRequest reports malformed or missing input.
func ErrInvalidRequest(message string) error {
	return platformerrors.New(platformerrors.CodeInvalidInput, message)
}

// ErrInvalidRequestf is the formatted variant of ErrInvalidRequest.
func ErrInvalidRequestf(format string, args ...interface{}) error {
	return platformerrors.Newf(platformerrors.CodeInvalidInput, format, args...)
}

// ErrNotFound reports an unknown download id or repository name.
func ErrNotFound(format string, args ...interface{}) error {
	return platformerrors.Newf(platformerrors.CodeNotFound, format, args...)
}

// ErrInvalidState reports an operation that is not valid for the current
// status of a download, such as cancelling a finished one.
func ErrInvalidState(format string, args ...interface{}) error {
	return platformerrors.Newf(platformerrors.CodeConflict, format, args...)
}

// ErrConflict reports an ambiguous request that matches several resources.
func ErrConflict(candidates []string, format string, args ...interface{}) error {
	err := platformerrors.Newf(platformerrors.CodeConflict, format, args...)
	if len(candidates) == 0 {
		return err
	}
	return platformerrors.WithContext(err, "candidates", candidates)
}

// ErrIO wraps a filesystem failure.
func ErrIO(err error, format string, args ...interface{}) error {
	return platformerrors.Wrapf(err, platformerrors.CodeInternal, format, args...)
}

// ErrNetwork wraps a transport failure talking to the model hub. It is
// retryable.
func ErrNetwork(err error, format string, args ...interface{}) error {
	if err == nil {
		return platformerrors.Newf(platformerrors.CodeNetwork, format, args...)
	}
	return platformerrors.Wrapf(err, platformerrors.CodeNetwork, format, args...)
}

// IsNotFound reports whether err carries the not-found code.
func IsNotFound(err error) bool {
	return platformerrors.GetCode(err) == platformerrors.CodeNotFound
}

// IsInvalidRequest reports whether err carries the invalid-input code.
func IsInvalidRequest(err error) bool {
	return platformerrors.GetCode(err) == platformerrors.CodeInvalidInput
}

// IsConflict reports whether err carries the conflict code.
func IsConflict(err error) bool {
	return platformerrors.GetCode(err) == platformerrors.CodeConflict
}

// ErrorMessage renders err without the bracketed code prefix so it can be
// stored on a download record or shown to a user.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var pe platformerrors.PlatformError
	if platformerrors.As(err, &pe) {
		msg := pe.Message()
		if cause := pe.Unwrap(); cause != nil {
			msg += ": " + ErrorMessage(cause)
		}
		return msg
	}
	return err.Error()
}

// ClearError is returned when clearing the cache removed some folders but not
// all of them.
type ClearError struct {
	FailedFolders []string
	cause         error
}

// NewClearError aggregates per-folder failures. It returns nil when failures
// is empty.
func NewClearError(failures map[string]error) error {
	if len(failures) == 0 {
		return nil
	}
	folders := make([]string, 0, len(failures))
	for folder := range failures {
		folders = append(folders, folder)
	}
	sort.Strings(folders)

	var cause error
	for _, folder := range folders {
		cause = multierr.Append(cause, fmt.Errorf("%s: %w", folder, failures[folder]))
	}
	return &ClearError{FailedFolders: folders, cause: cause}
}

func (e *ClearError) Error() string {
	return fmt.Sprintf("failed to remove %d folder(s): %s", len(e.FailedFolders), strings.Join(e.FailedFolders, ", "))
}

// Unwrap returns the combined per-folder causes.
func (e *ClearError) Unwrap() error {
	return e.cause
}

// Causes lists the per-folder failures in folder order.
func (e *ClearError) Causes() []error {
	return multierr.Errors(e.cause)
}

func (e *ClearError) Code() platformerrors.ErrorCode {
	return platformerrors.CodeInternal
}

func (e *ClearError) Classification() platformerrors.ErrorClassification {
	return platformerrors.ClassificationPermanent
}

func (e *ClearError) Message() string {
	return e.Error()
}

func (e *ClearError) Context() map[string]interface{} {
	return map[string]interface{}{"failed_folders": append([]string(nil), e.FailedFolders...)}
}
