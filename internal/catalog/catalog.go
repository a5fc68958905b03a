// Package catalog resolves which translation resources belong to the product
// from the public plugin index.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/oukeidos/posync/internal/apperrors"
	"github.com/oukeidos/posync/internal/httpclient"
	"github.com/oukeidos/posync/internal/logger"
)

// DefaultURL is the plugin index published with the project website.
const DefaultURL = "https://theforeman.org/plugins/index.json"

// Untracked lists resources that are not plugins (main projects) or that are
// shipped folded into another product, so the index never flags them.
var Untracked = []string{
	"foreman",
	"foreman_remote_execution_core",
	"hammer-cli",
	"hammer-cli-foreman",
}

// Flag is a boolean that also accepts the loose encodings found in the index
// ("yes", "true", 1).
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = false
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes", "y", "1":
			*f = true
		default:
			*f = false
		}
		return nil
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("false")):
		*f = Flag(bytes.Equal(data, []byte("true")))
		return nil
	default:
		n, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid flag value %s", data)
		}
		*f = n != 0
		return nil
	}
}

// Plugin is one entry of the index.
type Plugin struct {
	Name         string `json:"name"`
	Translations string `json:"translations"`
	Satellite    Flag   `json:"satellite"`
}

// Index is the plugin index document.
type Index struct {
	CLI                 []Plugin `json:"cli"`
	ForemanCore         []Plugin `json:"foreman_core"`
	SmartProxyProviders []Plugin `json:"smart_proxy_providers"`
	SmartProxyModules   []Plugin `json:"smart_proxy_modules"`
}

// Parse decodes an index document.
func Parse(data []byte) (Index, error) {
	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return Index{}, apperrors.New(apperrors.KindValidation, "plugin index is not valid JSON", err)
	}
	return idx, nil
}

func (i Index) plugins() []Plugin {
	all := make([]Plugin, 0, len(i.CLI)+len(i.ForemanCore)+len(i.SmartProxyProviders)+len(i.SmartProxyModules))
	all = append(all, i.CLI...)
	all = append(all, i.ForemanCore...)
	all = append(all, i.SmartProxyProviders...)
	all = append(all, i.SmartProxyModules...)
	return all
}

// Resources returns the sorted, de-duplicated resource slugs: every plugin
// with a translations location and the satellite flag, plus Untracked.
func (i Index) Resources() []string {
	seen := make(map[string]bool)
	for _, name := range Untracked {
		seen[name] = true
	}
	for _, p := range i.plugins() {
		if strings.TrimSpace(p.Translations) == "" || !bool(p.Satellite) {
			continue
		}
		slug := Slug(p.Translations)
		if slug == "" {
			logger.Warn("Ignoring plugin with unusable translations location", "plugin", p.Name, "translations", p.Translations)
			continue
		}
		seen[slug] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Slug derives the resource slug from a translations location: the final
// path segment with any trailing slash removed.
func Slug(location string) string {
	p := strings.TrimSpace(location)
	if u, err := url.Parse(p); err == nil && u.Path != "" {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	slug := path.Base(p)
	if slug == "." || slug == "/" {
		return ""
	}
	return slug
}

// Resolver fetches the index and computes the resource set.
type Resolver struct {
	client *resty.Client
	url    string
}

func NewResolver(client *resty.Client, indexURL string) *Resolver {
	if indexURL == "" {
		indexURL = DefaultURL
	}
	return &Resolver{client: client, url: indexURL}
}

// Resolve downloads the index and returns Index.Resources.
func (r *Resolver) Resolve(ctx context.Context) ([]string, error) {
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		Get(r.url)
	if err != nil {
		return nil, httpclient.RequestError("fetch plugin index", err)
	}
	if resp.IsError() {
		return nil, httpclient.StatusError("fetch plugin index", resp)
	}
	idx, err := Parse(resp.Body())
	if err != nil {
		return nil, err
	}
	names := idx.Resources()
	logger.Debug("Resolved plugin index", "url", r.url, "resources", len(names))
	return names, nil
}

// MissingResourcesError lists resources the index declares but the backend
// project lacks.
type MissingResourcesError struct {
	Missing []string
}

func (e *MissingResourcesError) Error() string {
	return fmt.Sprintf("missing resources: %s", strings.Join(e.Missing, ", "))
}

// Match fails when any name is absent from available.
func Match(names, available []string) error {
	have := make(map[string]bool, len(available))
	for _, name := range available {
		have[name] = true
	}
	var missing []string
	for _, name := range names {
		if !have[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	cause := &MissingResourcesError{Missing: missing}
	return apperrors.New(apperrors.KindMismatch, cause.Error(), cause)
}
