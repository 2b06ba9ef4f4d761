package readpath

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	memorystore "github.com/cachewarm/cachewarm/pkg/store/memory"
)

func TestCacheProvider_HitServesFromStore(t *testing.T) {
	root := t.TempDir()
	st := memorystore.New()
	defer func() { _ = st.Close() }()
	_ = st.Put(context.Background(), "a.bin", []byte("cached"))

	p := NewCacheProvider(CacheProviderConfig{RootDir: root, Store: st})

	data, err := p.ReadObject(filepath.Join(root, "a.bin"))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "cached" {
		t.Errorf("unexpected data: %q", data)
	}

	hits, misses := p.Stats()
	if hits != 1 || misses != 0 {
		t.Errorf("expected 1 hit 0 misses, got %d/%d", hits, misses)
	}
}

func TestCacheProvider_MissFallsBackToDisk(t *testing.T) {
	root := t.TempDir()
	st := memorystore.New()
	defer func() { _ = st.Close() }()

	path := filepath.Join(root, "b.bin")
	if err := os.WriteFile(path, []byte("on disk"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	p := NewCacheProvider(CacheProviderConfig{RootDir: root, Store: st})

	data, err := p.ReadObject(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "on disk" {
		t.Errorf("unexpected data: %q", data)
	}

	hits, misses := p.Stats()
	if hits != 0 || misses != 1 {
		t.Errorf("expected 0 hits 1 miss, got %d/%d", hits, misses)
	}
}

func TestCacheProvider_PathOutsideRootBypassesCache(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	st := memorystore.New()
	defer func() { _ = st.Close() }()

	path := filepath.Join(outside, "c.bin")
	if err := os.WriteFile(path, []byte("direct"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	p := NewCacheProvider(CacheProviderConfig{RootDir: root, Store: st})

	data, err := p.ReadObject(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "direct" {
		t.Errorf("unexpected data: %q", data)
	}

	// Out-of-root reads never touch the hit/miss accounting.
	hits, misses := p.Stats()
	if hits != 0 || misses != 0 {
		t.Errorf("expected no cache accounting, got %d/%d", hits, misses)
	}
}

func TestCacheProvider_Open(t *testing.T) {
	root := t.TempDir()
	st := memorystore.New()
	defer func() { _ = st.Close() }()
	_ = st.Put(context.Background(), "d.bin", []byte("stream me"))

	p := NewCacheProvider(CacheProviderConfig{RootDir: root, Store: st})

	rc, err := p.Open(filepath.Join(root, "d.bin"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "stream me" {
		t.Errorf("unexpected data: %q", data)
	}
}

func TestCacheProvider_SetParamsRescopes(t *testing.T) {
	rootA := t.TempDir()
	rootB := t.TempDir()
	st := memorystore.New()
	defer func() { _ = st.Close() }()
	_ = st.Put(context.Background(), "e.bin", []byte("cached"))

	p := NewCacheProvider(CacheProviderConfig{RootDir: rootA, Store: st})
	p.SetParams(rootB)

	data, err := p.ReadObject(filepath.Join(rootB, "e.bin"))
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "cached" {
		t.Errorf("unexpected data: %q", data)
	}
}

func TestCacheProvider_StoreErrorDegradesToMiss(t *testing.T) {
	root := t.TempDir()
	st := memorystore.New()
	_ = st.Close() // force Get errors

	path := filepath.Join(root, "f.bin")
	if err := os.WriteFile(path, []byte("still works"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	p := NewCacheProvider(CacheProviderConfig{RootDir: root, Store: st})

	data, err := p.ReadObject(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != "still works" {
		t.Errorf("unexpected data: %q", data)
	}
}

func TestInstaller_Idempotent(t *testing.T) {
	var i Installer
	builds := 0

	build := func() (Provider, error) {
		builds++
		return NewDirect(), nil
	}

	p1, err := i.Install(build)
	if err != nil {
		t.Fatalf("install failed: %v", err)
	}
	p2, err := i.Install(build)
	if err != nil {
		t.Fatalf("second install failed: %v", err)
	}
	if builds != 1 {
		t.Errorf("expected 1 build, got %d", builds)
	}
	if p1 != p2 {
		t.Error("expected the same provider from both installs")
	}
	if i.Installed() != p1 {
		t.Error("Installed returned a different provider")
	}
}

func TestInstaller_MemoizesError(t *testing.T) {
	var i Installer
	wantErr := errors.New("boom")

	if _, err := i.Install(func() (Provider, error) { return nil, wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("expected build error, got %v", err)
	}
	// A later, would-be-successful build never runs.
	if _, err := i.Install(func() (Provider, error) { return NewDirect(), nil }); !errors.Is(err, wantErr) {
		t.Errorf("expected memoized error, got %v", err)
	}
	if i.Installed() != nil {
		t.Error("Installed must return nil after a failed install")
	}
}

func TestCacheProvider_MaintenanceHookFires(t *testing.T) {
	st := memorystore.New()
	defer func() { _ = st.Close() }()
	p := NewCacheProvider(CacheProviderConfig{RootDir: t.TempDir(), Store: st})

	var fired atomic.Int32
	stop := p.StartMaintenance(10*time.Millisecond, func(ctx context.Context) {
		fired.Add(1)
	})
	defer stop()

	deadline := time.Now().Add(2 * time.Second)
	for fired.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if fired.Load() == 0 {
		t.Fatal("maintenance hook never fired")
	}

	stop()
	stop() // idempotent
}
