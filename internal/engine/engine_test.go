package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleUnits = map[string]string{
	"foreman__ja":    "msgid \"Host\"\nmsgstr \"ホスト\"\n",
	"foreman__zh_CN": "msgid \"Host\"\nmsgstr \"主机\"\n",
	"foreman__de":    "msgid \"Hosts\"\nmsgstr \"Hosts – Übersicht\"\n",
	"hammer-cli__ko": "msgid \"Done\"\nmsgstr \"완료\"\n",
}

func TestDiskStore_LocalRoundTrip(t *testing.T) {
	fs := memfs.New()
	store := NewDiskStore(fs, "Transifex")
	require.Equal(t, "transifex", store.Dir())
	require.NoError(t, store.Store(sampleUnits))

	sub, err := fs.Chroot(store.Dir())
	require.NoError(t, err)
	got, err := NewLocal(sub).Download(context.Background())
	require.NoError(t, err)

	if diff := cmp.Diff(sampleUnits, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDiskStore_OnDiskRoundTrip(t *testing.T) {
	root := t.TempDir()
	store := NewDiskStore(osfs.New(root), "memsource")
	require.NoError(t, store.Store(sampleUnits))

	raw, err := os.ReadFile(filepath.Join(root, "memsource", "foreman__ja.po"))
	require.NoError(t, err)
	assert.Equal(t, []byte(sampleUnits["foreman__ja"]), raw)

	got, err := NewLocal(osfs.New(filepath.Join(root, "memsource"))).Download(context.Background())
	require.NoError(t, err)
	if diff := cmp.Diff(sampleUnits, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDiskStore_Overwrites(t *testing.T) {
	fs := memfs.New()
	store := NewDiskStore(fs, "transifex")
	require.NoError(t, util.WriteFile(fs, "transifex/foreman__ja.po", []byte("a much longer stale content"), 0o644))

	require.NoError(t, store.Store(map[string]string{"foreman__ja": "new"}))

	data, err := util.ReadFile(fs, "transifex/foreman__ja.po")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestDiskStore_RejectsPathNames(t *testing.T) {
	store := NewDiskStore(memfs.New(), "transifex")
	for _, key := range []string{"", "../escape", "a/b", ".."} {
		assert.Error(t, store.Store(map[string]string{key: "x"}), "key %q", key)
	}
}

func TestDiskStore_InvalidNameWritesNothing(t *testing.T) {
	fs := memfs.New()
	store := NewDiskStore(fs, "transifex")
	err := store.Store(map[string]string{
		"foreman__de": "x",
		"zz/escape":   "y",
	})
	require.Error(t, err)

	_, err = fs.Stat("transifex/foreman__de.po")
	assert.True(t, os.IsNotExist(err), "valid keys must not be written when another key is invalid")
	_, err = fs.Stat("transifex")
	assert.True(t, os.IsNotExist(err))
}

func TestLocal_DownloadFiltersAndSorts(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "b__ja.po", []byte("b"), 0o644))
	require.NoError(t, util.WriteFile(fs, "a__ja.po", []byte("a"), 0o644))
	require.NoError(t, util.WriteFile(fs, "notes.txt", []byte("ignored"), 0o644))
	require.NoError(t, util.WriteFile(fs, "foreman.pot", []byte("ignored"), 0o644))
	require.NoError(t, fs.MkdirAll("nested.po", 0o755))

	local := NewLocal(fs)
	got, err := local.Download(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a__ja": "a", "b__ja": "b"}, got)
	assert.Equal(t, []string{"a__ja", "b__ja"}, SortedKeys(got))

	assert.NoError(t, local.Upload(context.Background(), got))
	assert.NoError(t, local.Store(got))
	assert.Equal(t, "local", local.Name())
}

func TestLocal_MissingDirectory(t *testing.T) {
	_, err := NewLocal(osfs.New(filepath.Join(t.TempDir(), "absent"))).Download(context.Background())
	assert.Error(t, err)
}

func TestEngineImplementations(t *testing.T) {
	var _ Engine = (*Local)(nil)
}
