package utils

import (
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
)

var (
	spinnerMu sync.Mutex
	active    *spinner.Spinner
)

// StartSpinner shows an activity indicator with msg until StopSpinner is
// called. Starting again only changes the message.
func StartSpinner(w io.Writer, msg string) {
	spinnerMu.Lock()
	defer spinnerMu.Unlock()

	if active != nil {
		active.Suffix = " " + msg
		return
	}
	active = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	active.Suffix = " " + msg
	active.Start()
}

func StopSpinner() {
	spinnerMu.Lock()
	defer spinnerMu.Unlock()

	if active == nil {
		return
	}
	active.Stop()
	active = nil
}
