package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/oukeidos/posync/internal/apperrors"
	"github.com/oukeidos/posync/internal/engine"
	"github.com/oukeidos/posync/internal/memsource"
	"github.com/oukeidos/posync/internal/transifex"
)

// None disables the destination: the run only downloads and stores.
const None = "none"

var (
	SourceNames      = []string{transifex.Name, memsource.Name, engine.LocalName}
	DestinationNames = []string{transifex.Name, memsource.Name, None}
)

// Config holds everything a sync run needs.
type Config struct {
	Source      string
	Destination string

	// LocalDir is read by the local source.
	LocalDir string
	// CacheDir is where remote sources store <engine>/<key>.po.
	CacheDir string

	// Transifex
	TransifexToken string
	Organization   string
	Project        string
	CatalogURL     string
	PollInterval   time.Duration

	// Memsource
	ProjectID         string
	MemsourceUser     string
	MemsourcePassword string
	SessionCache      string

	// Yes uploads without asking.
	Yes bool

	// OnConfirmUpload is asked once before the destination upload. It should
	// return true to proceed. Nil means proceed.
	OnConfirmUpload func(destination string, count int) (bool, error)
}

// Normalize trims and lowercases engine names and fills defaults. It returns
// a note for every value it had to adjust.
func (c Config) Normalize() (Config, []string) {
	var notes []string
	c.Source = strings.ToLower(strings.TrimSpace(c.Source))
	c.Destination = strings.ToLower(strings.TrimSpace(c.Destination))
	if c.Destination == "" {
		c.Destination = None
	}
	c.ProjectID = strings.TrimSpace(c.ProjectID)
	c.LocalDir = strings.TrimSpace(c.LocalDir)
	if strings.TrimSpace(c.CacheDir) == "" {
		c.CacheDir = "."
	}
	if c.PollInterval < 0 {
		notes = append(notes, fmt.Sprintf("poll interval %s is negative, using %s", c.PollInterval, transifex.DefaultPollInterval))
		c.PollInterval = transifex.DefaultPollInterval
	}
	if c.PollInterval == 0 {
		c.PollInterval = transifex.DefaultPollInterval
	}
	return c, notes
}

// Uses reports whether name is the source or the destination.
func (c Config) Uses(name string) bool {
	return c.Source == name || c.Destination == name
}

func configError(format string, args ...any) error {
	return apperrors.New(apperrors.KindConfig, fmt.Sprintf(format, args...), nil)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// ValidateEngines checks the engine selection only. Callers use it to fail
// before resolving credentials.
func (c Config) ValidateEngines() error {
	if !contains(SourceNames, c.Source) {
		return configError("Unknown source %q (expected one of %s).", c.Source, strings.Join(SourceNames, ", "))
	}
	if !contains(DestinationNames, c.Destination) {
		return configError("Unknown destination %q (expected one of %s).", c.Destination, strings.Join(DestinationNames, ", "))
	}
	if c.Source == c.Destination {
		return configError("Source and destination must differ (both are %s).", c.Source)
	}
	if c.Source == engine.LocalName && c.LocalDir == "" {
		return configError("A local directory is required when the source is local.")
	}
	return nil
}

// Validate checks a normalized Config before any engine is built.
func (c Config) Validate() error {
	if err := c.ValidateEngines(); err != nil {
		return err
	}
	if c.Uses(transifex.Name) && c.TransifexToken == "" {
		return configError("A Transifex API token is required.")
	}
	if c.Uses(memsource.Name) {
		if c.ProjectID == "" {
			return configError("A Memsource project ID is required.")
		}
		if c.MemsourceUser == "" || c.MemsourcePassword == "" {
			return configError("Memsource username and password are required.")
		}
	}
	return nil
}
