package characteriser

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// An ErrorReporter receives the engine's recoverable failures and warnings.
// The host can supply its own to route them into its error channel.
type ErrorReporter interface {
	Errorf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

type stderrReporter struct {
	errTag  string
	warnTag string
}

// NewStderrReporter returns the default reporter, which writes coloured
// tagged lines to stderr.
func NewStderrReporter() ErrorReporter {
	return &stderrReporter{
		errTag:  color.New(color.FgRed, color.Bold).Sprint("[AIWC error]"),
		warnTag: color.New(color.FgYellow).Sprint("[AIWC warning]"),
	}
}

func (r *stderrReporter) Errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, r.errTag+" "+format+"\n", args...)
}

func (r *stderrReporter) Warnf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, r.warnTag+" "+format+"\n", args...)
}
