package memsource

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/oukeidos/posync/internal/apperrors"
	"github.com/oukeidos/posync/internal/engine"
	"github.com/oukeidos/posync/internal/language"
	"github.com/oukeidos/posync/internal/logger"
)

// Name is the engine name and cache directory.
const Name = "memsource"

// JobClient is the subset of Client the engine drives.
type JobClient interface {
	ProjectUID() string
	ListJobs(ctx context.Context, statuses ...Status) ([]Job, error)
	TargetFile(ctx context.Context, jobUID string) (string, error)
	UpdateSource(ctx context.Context, jobUID, filename, content string) error
	CreateJob(ctx context.Context, filename, targetLang, content string) error
}

// Engine moves translation units in and out of a Memsource project.
type Engine struct {
	engine.DiskStore
	client JobClient
}

func New(client JobClient, store engine.DiskStore) *Engine {
	return &Engine{DiskStore: store, client: client}
}

func (e *Engine) Name() string { return Name }

func jobKey(filename string) string {
	return strings.TrimSuffix(filename, engine.Extension)
}

// Download fetches the target file of every completed job, keyed by the
// job filename without its extension.
func (e *Engine) Download(ctx context.Context) (map[string]string, error) {
	jobs, err := e.client.ListJobs(ctx, StatusCompleted)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].Filename < jobs[j].Filename })
	logger.Info("Downloading from Memsource", "project", e.client.ProjectUID(), "jobs", len(jobs))

	units := make(map[string]string, len(jobs))
	for _, job := range jobs {
		key := jobKey(job.Filename)
		if _, dup := units[key]; dup {
			return nil, apperrors.New(apperrors.KindValidation,
				fmt.Sprintf("Memsource project has more than one completed job for %s.", key), nil)
		}
		content, err := e.client.TargetFile(ctx, job.UID)
		if err != nil {
			return nil, fmt.Errorf("memsource download %s: %w", key, err)
		}
		units[key] = content
		logger.Debug("Downloaded job", "key", key, "job", job.UID)
	}
	return units, nil
}

// Upload replaces the source of the job matching each unit, or creates a
// job for the language named in the key when none exists. A rejected
// request is logged and the next unit is tried.
func (e *Engine) Upload(ctx context.Context, units map[string]string) error {
	jobs, err := e.client.ListJobs(ctx, UpdatableStatuses...)
	if err != nil {
		return err
	}
	existing := make(map[string]Job, len(jobs))
	for _, job := range jobs {
		key := jobKey(job.Filename)
		if prev, ok := existing[key]; ok {
			logger.Warn("Several Memsource jobs share a filename, using the first", "key", key, "job", prev.UID)
			continue
		}
		existing[key] = job
	}

	var updated, created, skipped, failed int
	for _, key := range engine.SortedKeys(units) {
		content := units[key]
		if job, ok := existing[key]; ok {
			err = e.client.UpdateSource(ctx, job.UID, key+engine.Extension, content)
			if err == nil {
				updated++
				logger.Info("Updated job source", "key", key, "job", job.UID)
				continue
			}
		} else {
			_, lang, ok := language.SplitKey(key)
			if !ok {
				logger.Warn("No target language in translation key, skipping", "key", key)
				skipped++
				continue
			}
			err = e.client.CreateJob(ctx, key, lang, content)
			if err == nil {
				created++
				logger.Info("Created job", "key", key, "language", lang)
				continue
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		failed++
		logRejection(key, err)
	}
	logger.Info("Memsource upload finished", "updated", updated, "created", created, "skipped", skipped, "failed", failed)
	return nil
}

func logRejection(key string, err error) {
	var rejected *RejectedError
	if !errors.As(err, &rejected) {
		logger.Warn("Memsource upload failed", "key", key, "error", err)
		return
	}
	if rejected.ErrorCode != "" {
		logger.Warn("Memsource rejected upload", "key", key, "status", rejected.StatusCode, "error_code", rejected.ErrorCode)
		return
	}
	logger.Warn("Memsource rejected upload", "key", key, "status", rejected.StatusCode, "response", rejected.Raw)
}
