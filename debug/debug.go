// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: debug.go — cold-path diagnostic logging
//
// Purpose:
//   - Logs setup, saturation, teardown and error paths through logrus.
//   - DropError / DropMessage entry points keep call sites one-liners.
//
// Notes:
//   - Output defaults to stderr; stdout is reserved for results.
//   - Every entry carries a "tag" field with the caller's prefix.
//
// ⚠️ Never invoke in per-row loops; use only for summaries and failures.
// ─────────────────────────────────────────────────────────────────────────────

package debug

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Fields is re-exported so callers need not import logrus for summaries.
type Fields = logrus.Fields

// Setup configures the global logger level and output.
func Setup(level string, out io.Writer) error {
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	if out == nil {
		out = os.Stderr
	}
	logrus.SetLevel(lv)
	logrus.SetOutput(out)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return nil
}

// DropError logs err under prefix at warning level. A nil err logs just the
// prefix, which serves as a cheap trace tag.
func DropError(prefix string, err error) {
	if err != nil {
		logrus.WithField("tag", prefix).WithError(err).Warn(prefix)
		return
	}
	logrus.WithField("tag", prefix).Warn(prefix)
}

// DropMessage logs an informational message under prefix.
func DropMessage(prefix, message string) {
	logrus.WithField("tag", prefix).Info(message)
}

// DropFields logs a structured summary under prefix.
func DropFields(prefix string, fields Fields) {
	logrus.WithFields(fields).WithField("tag", prefix).Info(prefix)
}

// DropTrace logs at debug level; cheap to leave in place when disabled.
func DropTrace(prefix, message string) {
	if logrus.IsLevelEnabled(logrus.DebugLevel) {
		logrus.WithField("tag", prefix).Debug(message)
	}
}
