package export

import (
	"fmt"
	"io"
)

// Reporter receives progress events at the pipeline's named milestones. It is
// a pure observer and never influences control flow. A percent below zero
// means "indeterminate".
type Reporter interface {
	Progress(percent int, message string)
}

// NopReporter discards all progress events. Used for headless and test runs.
type NopReporter struct{}

func (NopReporter) Progress(int, string) {}

// ConsoleReporter writes progress lines to W.
type ConsoleReporter struct {
	W io.Writer
}

func (r ConsoleReporter) Progress(percent int, message string) {
	if percent < 0 {
		fmt.Fprintf(r.W, "%s\n", message)
		return
	}
	fmt.Fprintf(r.W, "[%3d%%] %s\n", percent, message)
}
