package main

import (
	"io"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/artifact"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/model"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/report"
)

// outputFlags are shared by the commands that run batches.
type outputFlags struct {
	Dir       string
	Report    string
	Map       bool
	Shapefile bool
}

// resolveDir returns the artifact directory, falling back to config.
func (o outputFlags) resolveDir() string {
	if o.Dir != "" {
		return o.Dir
	}
	return cfg.Output.Dir
}

// finishBatch prints the results and writes the optional map payload and
// xlsx report.
func finishBatch(w io.Writer, runID uuid.UUID, results []model.ParcelResult, out outputFlags) error {
	if err := printResults(w, results); err != nil {
		return err
	}

	if out.Map {
		path := filepath.Join(out.resolveDir(), artifact.MapFile)
		if err := artifact.WriteMapPayload(path, model.BuildMapPayload(results)); err != nil {
			return err
		}
		zap.L().Info("wrote map payload", zap.String("path", path))
	}

	if out.Report != "" {
		if err := report.WriteXLSX(out.Report, runID, results); err != nil {
			return err
		}
		zap.L().Info("wrote report", zap.String("path", out.Report))
	}
	return nil
}
