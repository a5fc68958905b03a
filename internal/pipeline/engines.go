package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/oukeidos/posync/internal/catalog"
	"github.com/oukeidos/posync/internal/engine"
	"github.com/oukeidos/posync/internal/httpclient"
	"github.com/oukeidos/posync/internal/memsource"
	"github.com/oukeidos/posync/internal/transifex"
)

// Deps are the process-level collaborators engines are built from. Zero
// values select the production ones.
type Deps struct {
	HTTPClient *http.Client
	// CacheFS replaces osfs.New(Config.CacheDir).
	CacheFS billy.Filesystem
	// LocalFS replaces osfs.New(Config.LocalDir).
	LocalFS      billy.Filesystem
	Now          func() time.Time
	TransifexURL string
	MemsourceURL string
}

func (d Deps) withDefaults(cfg Config) Deps {
	if d.HTTPClient == nil {
		d.HTTPClient = httpclient.GetDefaultClient()
	}
	if d.CacheFS == nil {
		d.CacheFS = osfs.New(cfg.CacheDir)
	}
	if d.LocalFS == nil && cfg.LocalDir != "" {
		d.LocalFS = osfs.New(cfg.LocalDir)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// NewEngine builds the engine called name. It returns a nil Engine for None.
// Building the Memsource engine logs in unless the cached session is valid.
func NewEngine(ctx context.Context, cfg Config, name string, deps Deps) (engine.Engine, error) {
	deps = deps.withDefaults(cfg)
	switch name {
	case transifex.Name:
		client, err := transifex.NewClient(cfg.TransifexToken, transifex.Options{
			BaseURL:      deps.TransifexURL,
			Organization: cfg.Organization,
			Project:      cfg.Project,
			PollInterval: cfg.PollInterval,
			HTTPClient:   deps.HTTPClient,
		})
		if err != nil {
			return nil, err
		}
		resolver := catalog.NewResolver(httpclient.NewResty("", deps.HTTPClient), cfg.CatalogURL)
		return transifex.New(client, resolver, engine.NewDiskStore(deps.CacheFS, transifex.Name)), nil
	case memsource.Name:
		opts := memsource.Options{BaseURL: deps.MemsourceURL, HTTPClient: deps.HTTPClient}
		creds := memsource.Credentials{Username: cfg.MemsourceUser, Password: cfg.MemsourcePassword}
		session, err := memsource.LoadSession(ctx, opts, cfg.SessionCache, creds, deps.Now())
		if err != nil {
			return nil, err
		}
		client := memsource.NewClient(session, cfg.ProjectID, opts)
		return memsource.New(client, engine.NewDiskStore(deps.CacheFS, memsource.Name)), nil
	case engine.LocalName:
		if deps.LocalFS == nil {
			return nil, configError("A local directory is required when the source is local.")
		}
		return engine.NewLocal(deps.LocalFS), nil
	case None, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown engine %q", name)
	}
}
