package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/RMahshie/sleepsense/pkg/models"
)

// Exporter writes a summary of a record to a file
type Exporter interface {
	Export(ctx context.Context, sum *models.AnalysisSummary, rec *models.Record, path string) error
}

var errMissingInput = errors.New("report needs a summary and its record")

// prepare validates the inputs and creates the parent directory of path
func prepare(ctx context.Context, sum *models.AnalysisSummary, rec *models.Record, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sum == nil || rec == nil {
		return errMissingInput
	}
	if path == "" {
		return &IOError{Path: path, Op: "write", Err: errors.New("empty path")}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &IOError{Path: path, Op: "create directory for", Err: err}
	}
	return nil
}
