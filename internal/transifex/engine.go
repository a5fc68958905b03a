package transifex

import (
	"context"
	"fmt"

	"github.com/oukeidos/posync/internal/catalog"
	"github.com/oukeidos/posync/internal/engine"
	"github.com/oukeidos/posync/internal/language"
	"github.com/oukeidos/posync/internal/logger"
)

// Name is the engine name and cache directory.
const Name = "transifex"

// ResourceResolver yields the resource slugs that must exist on the backend.
type ResourceResolver interface {
	Resolve(ctx context.Context) ([]string, error)
}

// Engine moves translation units in and out of the Transifex project.
type Engine struct {
	engine.DiskStore
	client   *Client
	resolver ResourceResolver
}

func New(client *Client, resolver ResourceResolver, store engine.DiskStore) *Engine {
	return &Engine{DiskStore: store, client: client, resolver: resolver}
}

func (e *Engine) Name() string { return Name }

// discover validates the project against the required languages and the
// plugin index. It issues no per-resource request.
func (e *Engine) discover(ctx context.Context) ([]string, []string, error) {
	catalogLangs, err := e.client.ProjectLanguages(ctx)
	if err != nil {
		return nil, nil, err
	}
	langs, err := language.Require(catalogLangs)
	if err != nil {
		return nil, nil, err
	}

	names, err := e.resolver.Resolve(ctx)
	if err != nil {
		return nil, nil, err
	}
	available, err := e.client.Resources(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := catalog.Match(names, available); err != nil {
		return nil, nil, err
	}
	return names, langs, nil
}

// Download fetches every resource in every required language, keyed
// "{slug}__{lang}".
func (e *Engine) Download(ctx context.Context) (map[string]string, error) {
	resources, langs, err := e.discover(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("Downloading from Transifex", "project", e.client.ProjectID(), "resources", len(resources), "languages", len(langs))

	units := make(map[string]string, len(resources)*len(langs))
	for _, slug := range resources {
		for _, code := range langs {
			content, err := e.client.DownloadTranslation(ctx, slug, code)
			if err != nil {
				return nil, fmt.Errorf("transifex download %s: %w", language.JoinKey(slug, code), err)
			}
			units[language.JoinKey(slug, code)] = content
		}
		logger.Info("Downloaded resource", "resource", slug, "languages", len(langs))
	}
	return units, nil
}

// Upload pushes every unit whose key names a known resource and required
// language. Other keys are reported and skipped.
func (e *Engine) Upload(ctx context.Context, units map[string]string) error {
	resources, langs, err := e.discover(ctx)
	if err != nil {
		return err
	}
	knownResources := make(map[string]bool, len(resources))
	for _, slug := range resources {
		knownResources[slug] = true
	}
	knownLangs := make(map[string]bool, len(langs))
	for _, code := range langs {
		knownLangs[code] = true
	}

	var uploaded, skipped, failed int
	for _, key := range engine.SortedKeys(units) {
		slug, code, ok := language.SplitKey(key)
		if !ok || !knownResources[slug] || !knownLangs[code] {
			logger.Warn("No Transifex resource for translation, skipping", "key", key)
			skipped++
			continue
		}
		result, err := e.client.UploadTranslation(ctx, slug, code, units[key])
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("Transifex upload failed", "key", key, "error", err)
			failed++
			continue
		}
		uploaded++
		if result.TranslationsCreated > 0 || result.TranslationsUpdated > 0 {
			logger.Info("Uploaded translation", "key", key,
				"created", result.TranslationsCreated, "updated", result.TranslationsUpdated)
		}
	}
	logger.Info("Transifex upload finished", "uploaded", uploaded, "skipped", skipped, "failed", failed)
	return nil
}
