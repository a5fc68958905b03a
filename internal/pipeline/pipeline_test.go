package pipeline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/oukeidos/posync/internal/apperrors"
	"github.com/oukeidos/posync/internal/engine"
	"github.com/oukeidos/posync/internal/httpclient"
	"github.com/oukeidos/posync/internal/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	name        string
	units       map[string]string
	downloadErr error
	uploadErr   error
	calls       *[]string
	uploaded    map[string]string
	stored      map[string]string
	onDownload  func()
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Download(context.Context) (map[string]string, error) {
	*f.calls = append(*f.calls, f.name+".download")
	if f.onDownload != nil {
		f.onDownload()
	}
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	return f.units, nil
}

func (f *fakeEngine) Upload(_ context.Context, units map[string]string) error {
	*f.calls = append(*f.calls, f.name+".upload")
	f.uploaded = units
	return f.uploadErr
}

func (f *fakeEngine) Store(units map[string]string) error {
	*f.calls = append(*f.calls, f.name+".store")
	f.stored = units
	return nil
}

func newFakes() (*fakeEngine, *fakeEngine, *[]string) {
	var calls []string
	src := &fakeEngine{name: "src", units: map[string]string{"foreman__ja": "a", "foreman__de": "b"}, calls: &calls}
	dst := &fakeEngine{name: "dst", calls: &calls}
	return src, dst, &calls
}

func TestProcess_DownloadStoreUpload(t *testing.T) {
	src, dst, calls := newFakes()

	res, err := Process(context.Background(), src, dst)
	require.NoError(t, err)
	assert.Equal(t, []string{"src.download", "src.store", "dst.upload"}, *calls)
	assert.Equal(t, src.units, src.stored)
	assert.Equal(t, src.units, dst.uploaded)
	assert.Equal(t, 2, res.Units)
	assert.True(t, res.Uploaded)
}

func TestProcess_NoDestination(t *testing.T) {
	src, _, calls := newFakes()

	res, err := Process(context.Background(), src, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"src.download", "src.store"}, *calls)
	assert.False(t, res.Uploaded)
}

func TestProcess_DownloadFailureStoresNothing(t *testing.T) {
	src, dst, calls := newFakes()
	src.downloadErr = apperrors.New(apperrors.KindMismatch, "missing languages: ja", nil)

	_, err := Process(context.Background(), src, dst)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindMismatch))
	assert.Equal(t, []string{"src.download"}, *calls)
}

func TestProcess_CanceledAfterDownloadStoresNothing(t *testing.T) {
	src, dst, calls := newFakes()
	ctx, cancel := context.WithCancel(context.Background())
	src.onDownload = cancel

	_, err := Process(ctx, src, dst)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"src.download"}, *calls)
}

func TestProcess_UploadErrorPropagates(t *testing.T) {
	src, dst, _ := newFakes()
	dst.uploadErr = errors.New("boom")

	_, err := Process(context.Background(), src, dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upload to dst")
}

func TestProcess_ConfirmDeclinedSkipsUpload(t *testing.T) {
	src, dst, calls := newFakes()
	var asked string
	confirm := func(name string, count int) (bool, error) {
		asked = name
		assert.Equal(t, 2, count)
		return false, nil
	}

	res, err := process(context.Background(), src, dst, confirm)
	require.NoError(t, err)
	assert.Equal(t, "dst", asked)
	assert.Equal(t, []string{"src.download", "src.store"}, *calls)
	assert.False(t, res.Uploaded)
}

func TestConfigValidate(t *testing.T) {
	base := Config{
		TransifexToken:    "1/token",
		ProjectID:         "proj",
		MemsourceUser:     "user",
		MemsourcePassword: "pass",
		LocalDir:          "po",
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"transifex to memsource", func(c *Config) { c.Source, c.Destination = "transifex", "memsource" }, ""},
		{"local to none", func(c *Config) { c.Source, c.Destination = "local", "" }, ""},
		{"case and spaces", func(c *Config) { c.Source, c.Destination = " Local ", "TRANSIFEX" }, ""},
		{"same engine", func(c *Config) { c.Source, c.Destination = "memsource", "memsource" }, "must differ"},
		{"unknown source", func(c *Config) { c.Source = "crowdin" }, "Unknown source"},
		{"unknown destination", func(c *Config) { c.Source, c.Destination = "local", "local" }, "Unknown destination"},
		{"local without dir", func(c *Config) { c.Source, c.LocalDir = "local", "" }, "local directory"},
		{"missing token", func(c *Config) { c.Source, c.Destination, c.TransifexToken = "memsource", "transifex", "" }, "Transifex API token"},
		{"missing project", func(c *Config) { c.Source, c.Destination, c.ProjectID = "local", "memsource", "" }, "project ID"},
		{"missing password", func(c *Config) { c.Source, c.MemsourcePassword = "memsource", "" }, "username and password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			cfg, _ = cfg.Normalize()
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.KindConfig))
			assert.Contains(t, apperrors.PublicMessage(err), tt.wantErr)
		})
	}
}

func TestConfigNormalize_Defaults(t *testing.T) {
	cfg, notes := Config{Source: " Transifex ", PollInterval: -time.Second}.Normalize()
	assert.Equal(t, "transifex", cfg.Source)
	assert.Equal(t, None, cfg.Destination)
	assert.Equal(t, ".", cfg.CacheDir)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Len(t, notes, 1)
}

func TestNewEngine_StaticDispatch(t *testing.T) {
	cfg := Config{TransifexToken: "1/token", LocalDir: "po", PollInterval: time.Second}
	deps := Deps{CacheFS: memfs.New(), LocalFS: memfs.New()}

	tx, err := NewEngine(context.Background(), cfg, "transifex", deps)
	require.NoError(t, err)
	assert.Equal(t, "transifex", tx.Name())

	local, err := NewEngine(context.Background(), cfg, "local", deps)
	require.NoError(t, err)
	assert.Equal(t, "local", local.Name())

	none, err := NewEngine(context.Background(), cfg, None, deps)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = NewEngine(context.Background(), cfg, "crowdin", deps)
	assert.Error(t, err)
}

func TestRun_RejectsSameSourceAndDestinationBeforeNetwork(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits++ }))
	defer srv.Close()

	_, err := Run(context.Background(), Config{Source: "transifex", Destination: "transifex", TransifexToken: "1/t"},
		Deps{TransifexURL: srv.URL, CacheFS: memfs.New()})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConfig))
	assert.Zero(t, hits)
}

// fakeVendor accepts a login and job creation and records created filenames.
type fakeVendor struct {
	mu      sync.Mutex
	created []string
	bodies  map[string]string
}

func (v *fakeVendor) handle(w http.ResponseWriter, r *http.Request) {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch {
	case r.URL.Path == "/api2/v1/auth/login":
		_, _ = io.WriteString(w, `{"token":"tok","expires":"2099-01-01T00:00:00+0000"}`)
	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/jobs"):
		_, _ = io.WriteString(w, `{"totalPages":0,"content":[]}`)
	case r.Method == http.MethodPost && r.URL.Path == "/api2/v1/projects/proj/jobs":
		name := strings.TrimPrefix(r.Header.Get("Content-Disposition"), "filename*=UTF-8''")
		body, _ := io.ReadAll(r.Body)
		v.created = append(v.created, name)
		v.bodies[name] = string(body)
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestRun_LocalToMemsource(t *testing.T) {
	vendor := &fakeVendor{bodies: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(vendor.handle))
	defer srv.Close()

	localFS := memfs.New()
	require.NoError(t, util.WriteFile(localFS, "foreman__ja.po", []byte("ホスト"), 0o644))
	require.NoError(t, util.WriteFile(localFS, "foreman__de.po", []byte("Rechner"), 0o644))

	var confirmed bool
	cfg := Config{
		Source:            "local",
		Destination:       "memsource",
		LocalDir:          "unused",
		ProjectID:         "proj",
		MemsourceUser:     "user",
		MemsourcePassword: "pass",
		SessionCache:      filepath.Join(t.TempDir(), "token.json"),
		OnConfirmUpload: func(string, int) (bool, error) {
			confirmed = true
			return true, nil
		},
	}
	deps := Deps{
		HTTPClient:   httpclient.NewClient(5 * time.Second),
		CacheFS:      memfs.New(),
		LocalFS:      localFS,
		MemsourceURL: srv.URL,
	}

	res, err := Run(context.Background(), cfg, deps)
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.True(t, res.Uploaded)
	assert.Equal(t, 2, res.Units)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, []string{"foreman__de", "foreman__ja"}, vendor.created)
	assert.Equal(t, "ホスト", vendor.bodies["foreman__ja"])
}

func TestRun_NonInteractiveConfirmerUploads(t *testing.T) {
	vendor := &fakeVendor{bodies: map[string]string{}}
	srv := httptest.NewServer(http.HandlerFunc(vendor.handle))
	defer srv.Close()

	localFS := memfs.New()
	require.NoError(t, util.WriteFile(localFS, "foreman__ja.po", []byte("x"), 0o644))
	confirmer := prompt.Confirmer{In: strings.NewReader(""), IsInteractive: func() bool { return false }}
	cfg := Config{
		Source:            "local",
		Destination:       "memsource",
		LocalDir:          "unused",
		ProjectID:         "proj",
		MemsourceUser:     "user",
		MemsourcePassword: "pass",
		SessionCache:      filepath.Join(t.TempDir(), "token.json"),
		OnConfirmUpload: func(destination string, count int) (bool, error) {
			return confirmer.ConfirmUpload(destination, count, false)
		},
	}

	res, err := Run(context.Background(), cfg, Deps{LocalFS: localFS, CacheFS: memfs.New(), MemsourceURL: srv.URL})
	require.NoError(t, err)
	assert.True(t, res.Uploaded)
	assert.Equal(t, []string{"foreman__ja"}, vendor.created)
}

func TestRun_YesSkipsConfirmation(t *testing.T) {
	localFS := memfs.New()
	require.NoError(t, util.WriteFile(localFS, "foreman__ja.po", []byte("x"), 0o644))
	cfg := Config{
		Source:         "local",
		Destination:    "transifex",
		LocalDir:       "unused",
		TransifexToken: "1/t",
		Yes:            true,
		OnConfirmUpload: func(string, int) (bool, error) {
			t.Fatal("confirmation must not be asked with Yes")
			return false, nil
		},
	}
	// the destination fails discovery; only the confirmation path matters here
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := Run(context.Background(), cfg, Deps{LocalFS: localFS, CacheFS: memfs.New(), TransifexURL: srv.URL})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindTransport))
}

func TestEngineInterface(t *testing.T) {
	var _ engine.Engine = (*fakeEngine)(nil)
}
