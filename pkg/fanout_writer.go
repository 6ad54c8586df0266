package pkg

import (
	"io"

	"go.uber.org/multierr"
)

// FanOutWriter writes every log line to all of its targets. A failing target
// (full disk under the log file) must not silence the others, so a write
// counts as done when any target took all of p.
type FanOutWriter struct {
	targets []io.Writer
}

func NewFanOutWriter(targets ...io.Writer) *FanOutWriter {
	return &FanOutWriter{targets: targets}
}

func (w *FanOutWriter) Write(p []byte) (int, error) {
	var (
		errs      error
		delivered bool
	)
	for _, target := range w.targets {
		n, err := target.Write(p)
		if err == nil && n < len(p) {
			err = io.ErrShortWrite
		}
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		delivered = true
	}

	if !delivered {
		if errs == nil {
			// no targets
			return len(p), nil
		}
		return 0, errs
	}
	return len(p), errs
}
