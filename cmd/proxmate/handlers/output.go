package handlers

import (
	"bytes"
	"strings"

	"github.com/imamik/proxmate/internal/provisioning"
)

// detailWriter forwards provisioner output to the observer line by line.
type detailWriter struct {
	observer provisioning.Observer
	pending  []byte
}

func (w *detailWriter) Write(p []byte) (int, error) {
	w.pending = append(w.pending, p...)
	for {
		i := bytes.IndexByte(w.pending, '\n')
		if i < 0 {
			break
		}
		w.observer.Detail("%s", strings.TrimRight(string(w.pending[:i]), "\r"))
		w.pending = w.pending[i+1:]
	}
	return len(p), nil
}

// Flush emits a trailing line without newline.
func (w *detailWriter) Flush() {
	if len(w.pending) > 0 {
		w.observer.Detail("%s", string(w.pending))
		w.pending = nil
	}
}
