package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const filePrefix = "SleepSense_Report_"

// DefaultReportPath names a timestamped PDF under dir, or under the first
// existing of ~/Downloads, ~/Desktop and the working directory when dir is empty.
func DefaultReportPath(dir string, now time.Time) string {
	return defaultPath(dir, now, ".pdf")
}

// DefaultWorkbookPath is DefaultReportPath for the .xlsx summary
func DefaultWorkbookPath(dir string, now time.Time) string {
	return defaultPath(dir, now, ".xlsx")
}

func defaultPath(dir string, now time.Time, ext string) string {
	if dir == "" {
		dir = fallbackDir()
	}
	return filepath.Join(dir, filePrefix+now.Format("20060102_150405")+ext)
}

// ErrBadName is returned for a report file name that is not a plain name
// with the format's extension
var ErrBadName = errors.New("invalid report file name")

// NamedPath places the file name inside dir, or inside the fallback directory
// when dir is empty. Names with a directory part, and names whose extension
// differs from ext, are rejected.
func NamedPath(dir, name, ext string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q must be a file name without a directory", ErrBadName, name)
	}
	if !strings.EqualFold(filepath.Ext(name), ext) {
		return "", fmt.Errorf("%w: %q must end in %s", ErrBadName, name, ext)
	}
	if dir == "" {
		dir = fallbackDir()
	}
	return filepath.Join(dir, name), nil
}

func fallbackDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		for _, name := range []string{"Downloads", "Desktop"} {
			candidate := filepath.Join(home, name)
			if info, err := os.Stat(candidate); err == nil && info.IsDir() {
				return candidate
			}
		}
	}
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}
