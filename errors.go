package docsift

import "fmt"

// ErrConfig reports an invalid configuration value or call argument
// (bad chunk window, k <= 0, dimension mismatch). It is a caller bug:
// always surfaced, never retried, never recovered by fallback.
type ErrConfig struct {
	Param  string
	Reason string
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Reason)
}

// ErrUnavailable reports that an embedding provider could not be reached or
// refused the call (network failure, quota, auth). The retriever recovers
// locally by falling back to keyword search; callers only ever see it as
// Mode == ModeKeyword on results.
type ErrUnavailable struct {
	Provider string
	Err      error
}

func (e *ErrUnavailable) Error() string {
	return fmt.Sprintf("embedding provider %s unavailable: %v", e.Provider, e.Err)
}

func (e *ErrUnavailable) Unwrap() error { return e.Err }

// ErrCorruptSnapshot reports that an index snapshot could not be decoded
// (corruption, schema mismatch, wrong dimension). The index is reset to
// empty; the error exists so the caller can log the discarded snapshot.
type ErrCorruptSnapshot struct {
	Path string
	Err  error
}

func (e *ErrCorruptSnapshot) Error() string {
	return fmt.Sprintf("corrupt snapshot %s: %v", e.Path, e.Err)
}

func (e *ErrCorruptSnapshot) Unwrap() error { return e.Err }

// ErrSnapshotWrite reports a failed snapshot save. The in-memory index is
// unaffected; the caller may retry persistence later.
type ErrSnapshotWrite struct {
	Path string
	Err  error
}

func (e *ErrSnapshotWrite) Error() string {
	return fmt.Sprintf("write snapshot %s: %v", e.Path, e.Err)
}

func (e *ErrSnapshotWrite) Unwrap() error { return e.Err }

// ErrHTTP reports a non-2xx response from a remote embedding endpoint.
// Providers wrap it inside ErrUnavailable.
type ErrHTTP struct {
	Status int
	Body   string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}
