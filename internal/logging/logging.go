package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const sessionStamp = "20060102_150405"

// OpenSessionLog opens the log file for a session started at start, creating
// dir when missing. A file already at that path is kept as <path>.old. The
// path is returned even when opening fails so callers can report it.
func OpenSessionLog(dir, name string, start time.Time) (string, *os.File, error) {
	path := filepath.Join(dir, name+"."+start.Format(sessionStamp)+".log")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return path, nil, fmt.Errorf("create logs dir: %w", err)
	}
	if _, err := os.Stat(path); err == nil {
		_ = os.Rename(path, path+".old")
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return path, nil, err
	}
	return path, f, nil
}
