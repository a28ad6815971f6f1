// Package logger holds the process-wide logrus logger and the field helpers
// used to tag pipeline entries.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var Log = logrus.New()

// Init replaces Log with one configured for the service. Unknown levels fall
// back to info; any format other than "text" logs JSON.
func Init(level, format string) {
	Log = New(os.Stdout, level, format)
}

func New(out io.Writer, level, format string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)

	if strings.EqualFold(format, "text") {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
			FieldMap:        logrus.FieldMap{logrus.FieldKeyMsg: "message"},
		})
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// WithCase tags an entry with the case identity used across the triage pipeline.
func WithCase(caseID, caseNumber string) *logrus.Entry {
	fields := logrus.Fields{"case_id": caseID}
	if caseNumber != "" {
		fields["case_number"] = caseNumber
	}
	return Log.WithFields(fields)
}
