package blockcache

import (
	"context"
	"math/rand"
	"runtime"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// A mixed workload of concurrent GetOrLoad/Put/Get/Contains/Remove
// across a handful of packs. Should pass under -race without reports;
// the only invariant checked here is absence of data races and panics,
// not exact counts (those are covered by the deterministic tests).
func TestBlockCacheRace_MixedWorkload(t *testing.T) {
	bc := newTestCache(t, 16*1024)

	descs := []string{"pack-a", "pack-b", "pack-c", "pack-d"}

	workers := 4 * runtime.GOMAXPROCS(0)
	deadline := time.Now().Add(1 * time.Second)

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(w)*9973))
			for time.Now().Before(deadline) {
				desc := descs[r.Intn(len(descs))]
				pf, err := bc.GetOrCreatePack(desc, nil)
				if err != nil {
					return err
				}
				pos := int64(r.Intn(16)) * 512

				switch r.Intn(10) {
				case 0:
					bc.Remove(pf)
				case 1:
					bc.Put(pf.Key(), -1, 64, "index")
				default:
					if _, err := bc.GetOrLoad(context.Background(), pf, pos, nil); err != nil {
						return err
					}
					bc.Contains(pf.Key(), pf.AlignToBlock(pos))
					bc.Get(pf.Key(), pf.AlignToBlock(pos))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	bc.CleanUp()
}

// Concurrent GetOrCreatePack calls for the same description return the
// same PackFile; the factory builds at most once per description.
func TestBlockCacheRace_GetOrCreatePackSingleton(t *testing.T) {
	bc := newTestCache(t, 4096)

	const N = 64
	results := make([]interface{}, N)
	var g errgroup.Group
	for i := 0; i < N; i++ {
		i := i
		g.Go(func() error {
			pf, err := bc.GetOrCreatePack("shared-pack", nil)
			results[i] = pf
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	for i := 1; i < N; i++ {
		if results[i] != results[0] {
			t.Fatalf("caller %d observed a different PackFile", i)
		}
	}
}
