package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/oukeidos/posync/internal/engine"
	"github.com/oukeidos/posync/internal/logger"
)

// Result summarizes one sync pass.
type Result struct {
	RunID    string
	Units    int
	Uploaded bool
}

// Process downloads from src, stores the mapping through src, and uploads
// it to dst when dst is not nil.
func Process(ctx context.Context, src, dst engine.Engine) (Result, error) {
	return process(ctx, src, dst, nil)
}

func process(ctx context.Context, src, dst engine.Engine, confirm func(string, int) (bool, error)) (Result, error) {
	units, err := src.Download(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("download from %s: %w", src.Name(), err)
	}
	// nothing is written for an interrupted download
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	result := Result{Units: len(units)}

	if err := src.Store(units); err != nil {
		return result, fmt.Errorf("store %s: %w", src.Name(), err)
	}
	if dst == nil {
		return result, nil
	}

	if confirm != nil {
		ok, err := confirm(dst.Name(), len(units))
		if err != nil {
			return result, err
		}
		if !ok {
			logger.Info("Upload skipped by user", "destination", dst.Name())
			return result, nil
		}
	}
	if err := dst.Upload(ctx, units); err != nil {
		return result, fmt.Errorf("upload to %s: %w", dst.Name(), err)
	}
	result.Uploaded = true
	return result, nil
}

// Run validates cfg, builds both engines and performs one pass.
func Run(ctx context.Context, cfg Config, deps Deps) (Result, error) {
	cfg, notes := cfg.Normalize()
	for _, note := range notes {
		logger.Warn("Config normalized", "detail", note)
	}
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	runID := uuid.NewString()
	log := logger.With("run_id", runID)
	log.Info("Starting sync", "source", cfg.Source, "destination", cfg.Destination)

	src, err := NewEngine(ctx, cfg, cfg.Source, deps)
	if err != nil {
		return Result{RunID: runID}, err
	}
	dst, err := NewEngine(ctx, cfg, cfg.Destination, deps)
	if err != nil {
		return Result{RunID: runID}, err
	}

	var confirm func(string, int) (bool, error)
	if !cfg.Yes {
		confirm = cfg.OnConfirmUpload
	}
	result, err := process(ctx, src, dst, confirm)
	result.RunID = runID
	if err != nil {
		log.Error("Sync failed", "error", err)
		return result, err
	}
	log.Info("Sync finished", "units", result.Units, "uploaded", result.Uploaded)
	return result, nil
}
