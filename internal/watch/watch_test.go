package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/leapcomplete/internal/testutil"
	"github.com/leapstack-labs/leapcomplete/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, files map[core.SourceID]string) <-chan core.SourceID {
	t.Helper()
	changes := make(chan core.SourceID, 16)
	w, err := New(testutil.NewTestLogger(t), func(s core.SourceID) { changes <- s })
	require.NoError(t, err)
	w.SetDebounce(50 * time.Millisecond)
	for id, path := range files {
		require.NoError(t, w.Add(id, path))
	}

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	t.Cleanup(func() {
		cancel()
		_ = w.Close()
	})
	return changes
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "shop.db")
	require.NoError(t, os.WriteFile(db, []byte("v1"), 0o600))

	changes := startWatcher(t, map[core.SourceID]string{"shop": db})

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(db, []byte("v2"), 0o600))
	}
	require.NoError(t, os.WriteFile(db+"-wal", []byte("wal"), 0o600))

	select {
	case s := <-changes:
		assert.Equal(t, core.SourceID("shop"), s)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	select {
	case s := <-changes:
		t.Fatalf("burst reported twice (%s)", s)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "shop.db")
	require.NoError(t, os.WriteFile(db, []byte("v1"), 0o600))

	changes := startWatcher(t, map[core.SourceID]string{"shop": db})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))

	select {
	case s := <-changes:
		t.Fatalf("unexpected change for %s", s)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_SeparatesSources(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.db")
	b := filepath.Join(dir, "b.db")
	require.NoError(t, os.WriteFile(a, nil, 0o600))
	require.NoError(t, os.WriteFile(b, nil, 0o600))

	changes := startWatcher(t, map[core.SourceID]string{"a": a, "b": b})
	require.NoError(t, os.WriteFile(b, []byte("x"), 0o600))

	select {
	case s := <-changes:
		assert.Equal(t, core.SourceID("b"), s)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcher_AddMissingDirectory(t *testing.T) {
	w, err := New(nil, func(core.SourceID) {})
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	err = w.Add("ghost", filepath.Join(t.TempDir(), "missing", "x.db"))
	require.Error(t, err)
}
