// Command bench runs a synthetic workload against the block cache and
// exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/packdfs/blockcache"
	"github.com/packdfs/blockcache/examples/mempack"
	pmet "github.com/packdfs/blockcache/metrics/prom"
	"github.com/packdfs/blockcache/policy/twoq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// ---- Flags ----
	var (
		maxBytes  = flag.Int64("maxbytes", 64<<20, "cache weight budget, in bytes")
		blockSize = flag.Int64("blocksize", 4096, "native block size (power of two >= 512)")
		shards    = flag.Int("shards", 0, "number of shards (0=auto)")
		policyF   = flag.String("policy", "lru", "eviction policy: lru | 2q")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct  = flag.Int("reads", 80, "read percentage [0..100]; writes touch a pack's index artifact")

		packs   = flag.Int("packs", 10_000, "pack-description keyspace size")
		packLen = flag.Int64("packlen", 1<<20, "bytes per synthetic pack")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload = flag.Int("preload", 0, "packs to warm with one block each (0 = packs/2)")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := pmet.New(nil, "blockcache", "bench", nil)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	// ---- Build the block cache ----
	approxEntries := *maxBytes / *blockSize
	cfg := blockcache.Config{
		BlockSize:   *blockSize,
		MaxBytes:    *maxBytes,
		StreamRatio: 0.5,
		Shards:      *shards,
		Metrics:     metrics,
	}
	switch *policyF {
	case "lru":
		// nil => LRU by default
	case "2q":
		sh := *shards
		if sh <= 0 {
			sh = 2 * runtime.GOMAXPROCS(0)
		}
		perShard := int(approxEntries) / sh
		cfg.Policy = twoq.New[blockcache.BlockKey, blockcache.Ref[any]](perShard/4, perShard/2)
	default:
		log.Fatalf("unknown policy: %q (use lru or 2q)", *policyF)
	}

	bc, err := blockcache.New[string](cfg, mempack.NewFactory(*blockSize, *packLen))
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()

	packDesc := func(i int) string { return "pack:" + strconv.Itoa(i) }

	// ---- Preload half the packs with one block each for a realistic hit-rate ----
	pl := *preload
	if pl == 0 {
		pl = *packs / 2
	}
	for i := 0; i < pl; i++ {
		pf, err := bc.GetOrCreatePack(packDesc(i), nil)
		if err != nil {
			log.Fatal(err)
		}
		if _, err := bc.GetOrLoad(ctx, pf, 0, nil); err != nil {
			log.Fatal(err)
		}
	}

	// ---- Snapshot flags for goroutines ----
	readPctVal := *readPct
	packsMax := uint64(*packs - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// ---- Load generation ----
	var reads, writes, hits, misses, total uint64
	runCtx, cancel := context.WithTimeout(ctx, *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, packsMax)

			for {
				select {
				case <-runCtx.Done():
					return
				default:
				}

				atomic.AddUint64(&total, 1)
				desc := packDesc(int(localZipf.Uint64()))
				pf, err := bc.GetOrCreatePack(desc, nil)
				if err != nil {
					log.Fatal(err)
				}

				if int(localR.Int31n(100)) < readPctVal {
					atomic.AddUint64(&reads, 1)
					pos := pf.AlignToBlock(localR.Int63n(*packLen))
					if bc.Contains(pf.Key(), pos) {
						atomic.AddUint64(&hits, 1)
					} else {
						atomic.AddUint64(&misses, 1)
					}
					if _, err := bc.GetOrLoad(runCtx, pf, pos, nil); err != nil {
						log.Fatal(err)
					}
				} else {
					atomic.AddUint64(&writes, 1)
					bc.Put(pf.Key(), -1, 64, "index-v"+strconv.Itoa(localR.Int()))
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	ops := atomic.LoadUint64(&total)
	readsN := atomic.LoadUint64(&reads)
	writesN := atomic.LoadUint64(&writes)
	hitsN := atomic.LoadUint64(&hits)
	missesN := atomic.LoadUint64(&misses)

	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}

	fmt.Printf("policy=%s maxbytes=%d shards=%d workers=%d packs=%d dur=%v seed=%d\n",
		*policyF, *maxBytes, *shards, workersN, *packs, elapsed, seedBase)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		ops, float64(ops)/elapsed.Seconds(), readsN, writesN)
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hitsN, missesN, hitRate)
}
