// Package diag is a small non-fatal diagnostic sink for directory
// parsing: some directory entries are malformed in ways the parser can
// recover from locally (see common.KindMalformedDirectory), and diag
// gives a caller who wants to know about that a place to look without
// turning the recovery into a hard error.
package diag

import "log"

// Logger records recovered parse diagnostics. The zero value and a nil
// *Logger are both silent, matching how ReadOptions leaves logging off
// unless a caller opts in.
type Logger struct {
	l *log.Logger
}

// New wraps l for directory-parse diagnostics. With a nil l the Logger
// is silent: diagnostics are dropped, not stored.
func New(l *log.Logger) *Logger {
	return &Logger{l: l}
}

// MalformedDirectory reports a recovered directory-parse issue in the
// style the teacher's own tooling prints recoverable-strip warnings.
func (d *Logger) MalformedDirectory(err error) {
	if d == nil || d.l == nil {
		return
	}
	d.l.Printf("pecodec: %v", err)
}
