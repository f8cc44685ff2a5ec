package logutil

import (
	"fmt"
	"io"
	"log"
	"os"
)

const (
	maxSizeBytes = 10 * 1024 * 1024 // 10 MB
	maxArchives  = 3
)

// Setup routes the standard logger. With a file name and enabled=true, logs
// append to that file with size-based rotation (10MB, 3 archives). Disabled,
// logs are discarded so stdout stays clean for CLI output. Verbose sends logs
// to stderr regardless of the file setting.
func Setup(enabled bool, fileName string, verbose bool) {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if verbose {
		log.SetOutput(os.Stderr)
		return
	}
	if !enabled || fileName == "" {
		log.SetOutput(io.Discard)
		return
	}

	rotateIfNeeded(fileName)
	f, err := os.OpenFile(fileName, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		return
	}
	log.SetOutput(&rotatingWriter{f: f, name: fileName})
}

type rotatingWriter struct {
	f    *os.File
	name string
}

func (w *rotatingWriter) Write(p []byte) (int, error) {
	// naive rotation check per write
	if st, err := w.f.Stat(); err == nil && st.Size()+int64(len(p)) > maxSizeBytes {
		_ = w.f.Close()
		rotateIfNeeded(w.name)
		nf, err := os.OpenFile(w.name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return 0, err
		}
		w.f = nf
	}
	return w.f.Write(p)
}

func rotateIfNeeded(name string) {
	if st, err := os.Stat(name); err == nil && st.Size() > maxSizeBytes {
		_ = os.Remove(archiveName(name, maxArchives))
		for i := maxArchives - 1; i >= 1; i-- {
			_ = os.Rename(archiveName(name, i), archiveName(name, i+1))
		}
		_ = os.Rename(name, archiveName(name, 1))
	}
}

func archiveName(name string, n int) string { return fmt.Sprintf("%s.%d", name, n) }

// RedactKey masks an API key, leaving first/last 4 chars: xxxx...yyyy
func RedactKey(k string) string {
	if len(k) <= 8 {
		return "********"
	}
	return fmt.Sprintf("%s...%s", k[:4], k[len(k)-4:])
}
