package model

import (
	"errors"
	"fmt"
	"time"
)

// ConfigurationError reports missing or invalid run configuration.
type ConfigurationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" for %q", e.Field)
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// UnsupportedRemoteWikiError reports a remote that does not speak a
// compatible version of the synchronization protocol.
type UnsupportedRemoteWikiError struct {
	Wiki   string
	Reason string
}

func (e *UnsupportedRemoteWikiError) Error() string {
	return fmt.Sprintf("remote wiki %q is not supported: %s", e.Wiki, e.Reason)
}

// ConfigurationMismatchError reports a remote whose self-reported interwiki
// name differs from the name it was configured under.
type ConfigurationMismatchError struct {
	Configured string
	Reported   string
}

func (e *ConfigurationMismatchError) Error() string {
	return fmt.Sprintf("the remote wiki uses a different interwiki name (%s) internally than configured (%s)",
		e.Reported, e.Configured)
}

// RemoteUnavailableError reports a transport-level failure: the remote could
// not be reached at all, as opposed to refusing a request.
type RemoteUnavailableError struct {
	Wiki      string
	Operation string
	Err       error
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("remote wiki %q unavailable during %s: %v", e.Wiki, e.Operation, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error { return e.Err }

// RemoteFaultError reports an application-level refusal by the remote.
type RemoteFaultError struct {
	Page    string
	Code    string
	Message string
}

func (e *RemoteFaultError) Error() string {
	if e.Page == "" {
		return fmt.Sprintf("remote fault %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("remote fault %s for page %q: %s", e.Code, e.Page, e.Message)
}

// MergeRejectedError reports that the remote detected a stale base or a
// concurrent edit and refused to apply a merge.
type MergeRejectedError struct {
	Page    string
	Code    string
	Message string
}

func (e *MergeRejectedError) Error() string {
	return fmt.Sprintf("merge of page %q rejected (%s): %s", e.Page, e.Code, e.Message)
}

// MergeConflictError reports a merge that produced conflict markers where
// they may not be written.
type MergeConflictError struct {
	Page      string
	Conflicts int
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("merge of page %q has %d unresolved conflict(s)", e.Page, e.Conflicts)
}

// LockTimeoutError reports a tag store lock that was not acquired in time.
type LockTimeoutError struct {
	Page    string
	Mode    string
	Timeout time.Duration
}

func (e *LockTimeoutError) Error() string {
	return fmt.Sprintf("could not acquire %s lock on tags of page %q within %s", e.Mode, e.Page, e.Timeout)
}

// CorruptTagLogError reports persisted tag data that cannot be decoded.
// The log is left untouched.
type CorruptTagLogError struct {
	Path string
	Err  error
}

func (e *CorruptTagLogError) Error() string {
	return fmt.Sprintf("corrupt tag log %s: %v", e.Path, e.Err)
}

func (e *CorruptTagLogError) Unwrap() error { return e.Err }

// IsFatal reports whether err aborts a whole synchronization run rather than
// a single page.
func IsFatal(err error) bool {
	var (
		cfgErr         *ConfigurationError
		unsupportedErr *UnsupportedRemoteWikiError
		mismatchErr    *ConfigurationMismatchError
		unavailableErr *RemoteUnavailableError
	)
	return errors.As(err, &cfgErr) ||
		errors.As(err, &unsupportedErr) ||
		errors.As(err, &mismatchErr) ||
		errors.As(err, &unavailableErr)
}
