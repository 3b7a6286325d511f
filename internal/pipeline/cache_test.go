package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestCache(t *testing.T, dir string) *FeatureCache {
	t.Helper()
	b := NewBuilder(Options{DataDir: dir, DenyListFile: filepath.Join(dir, "excluded_companies.json")})
	fc, err := NewFeatureCache(b, 2)
	if err != nil {
		t.Fatal(err)
	}
	return fc
}

func TestFeatureCacheHitReturnsSameSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "signups.csv", "company_id,company_name,created_at", "1,Acme,2026-01-05")
	fc := newTestCache(t, dir)
	ctx := context.Background()

	first, err := fc.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := fc.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID || fc.Len() != 1 {
		t.Fatalf("unchanged inputs should hit the cache: %s vs %s", first.ID, second.ID)
	}
	if fc.Latest() != first {
		t.Fatalf("Latest should return the built snapshot")
	}
	if first.Features.Len() != 1 || first.Report.Companies != 1 {
		t.Fatalf("unexpected snapshot %+v", first.Report)
	}
	if len(first.Report.Stages) != 2 {
		t.Fatalf("expected load and join stage timings, got %+v", first.Report.Stages)
	}
}

func TestFeatureCacheRebuildsOnFileChange(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "signups.csv", "company_id,company_name", "1,Acme")
	fc := newTestCache(t, dir)
	ctx := context.Background()

	first, err := fc.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}

	later := time.Now().Add(time.Hour)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	second, err := fc.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID == first.ID || second.Key == first.Key {
		t.Fatalf("a touched file must produce a new snapshot")
	}

	writeCSV(t, dir, "excluded_companies.json", `{"excluded_companies": ["Acme"]}`)
	third, err := fc.Get(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if third.Features.Len() != 0 || third.Report.Exclusion.ByDenyList != 1 {
		t.Fatalf("deny-list change should rebuild and exclude Acme: %+v", third.Report.Exclusion)
	}
	if first.Features.Len() != 1 {
		t.Fatalf("an older snapshot must not change")
	}
}

func TestFeatureCacheConcurrentMissesShareBuild(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "signups.csv", "company_id,company_name", "1,Acme", "2,Beta")
	fc := newTestCache(t, dir)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := fc.Get(context.Background())
			if err != nil {
				t.Error(err)
				return
			}
			ids[i] = snap.ID
		}(i)
	}
	wg.Wait()
	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("concurrent readers saw different snapshots: %v", ids)
		}
	}
}

func TestSignatureKeyIsStable(t *testing.T) {
	sigs := []FileSignature{{Name: "a.csv", Size: 10, ModTime: time.Unix(100, 0)}}
	if SignatureKey(sigs) != SignatureKey(sigs) {
		t.Fatalf("equal inputs must give equal keys")
	}
	changed := []FileSignature{{Name: "a.csv", Size: 11, ModTime: time.Unix(100, 0)}}
	if SignatureKey(sigs) == SignatureKey(changed) {
		t.Fatalf("a size change must change the key")
	}
}
