// Package clipboard is an optional sink for analysis insights. Init must
// succeed before Write is usable; on headless systems Init fails and the
// caller simply skips the sink.
package clipboard

import (
	"fmt"
	"sync"

	"golang.design/x/clipboard"
)

var (
	mu    sync.Mutex
	ready bool
)

func Init() error {
	mu.Lock()
	defer mu.Unlock()
	if ready {
		return nil
	}
	if err := clipboard.Init(); err != nil {
		return fmt.Errorf("clipboard init: %w", err)
	}
	ready = true
	return nil
}

func Write(text string) error {
	mu.Lock()
	defer mu.Unlock()
	if !ready {
		return fmt.Errorf("clipboard not initialized")
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}
