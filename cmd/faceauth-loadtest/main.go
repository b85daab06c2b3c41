// Command faceauth-loadtest drives concurrent face authentications through
// an engine backed by Redis (or miniredis) and an in-memory provider, then
// checks that attempt counters lost no increments.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goFaceAuth "github.com/MrEthical07/goFaceAuth"
	"github.com/MrEthical07/goFaceAuth/provider/providertest"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-logr/logr"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		identities  = flag.Int("identities", 1000, "number of identities to enroll")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 50000, "operations per phase")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "falt", "redis key prefix")
	)
	flag.Parse()

	if *identities <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "identities, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var cleanup func()
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		cleanup = mr.Close
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		cleanup = func() {}
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	client := redis.NewClient(&redis.Options{Addr: addr, PoolSize: *concurrency})
	defer client.Close()

	fp := providertest.New().
		Set('e', []float64{0.10, 0.20, 0.30, 0.40}).
		Set('m', []float64{0.11, 0.21, 0.30, 0.40}).
		Set('x', []float64{0.90, 0.80, 0.70, 0.60})

	cfg := goFaceAuth.DefaultConfig()
	cfg.Liveness.Enabled = false
	cfg.Audit.Enabled = false
	cfg.Lockout.MaxFailedAttempts = 1 << 30
	cfg.Store.RedisPrefix = *prefix
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := goFaceAuth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithProvider(fp).
		WithLogger(logr.Discard()).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ids := make([]string, *identities)
	fmt.Printf("enrolling %d identities...\n", *identities)
	startSeed := time.Now()
	for i := range ids {
		ids[i] = fmt.Sprintf("user-%d", i)
		if _, err := engine.Register(ctx, ids[i], providertest.Image('e', 1024)); err != nil {
			fmt.Fprintf(os.Stderr, "register failed: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("enrolled in %s\n", time.Since(startSeed).Round(time.Millisecond))

	spread := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		return authenticate(ctx, engine, ids[r.Intn(len(ids))], r)
	})

	hot := ids[0]
	if err := engine.ResetLockout(ctx, hot, true); err != nil {
		fmt.Fprintf(os.Stderr, "reset failed: %v\n", err)
		os.Exit(1)
	}
	contended := runPhase(*ops, *concurrency, func(r *rand.Rand) error {
		return authenticate(ctx, engine, hot, r)
	})

	fmt.Println("---- results ----")
	printStats("spread", spread)
	printStats("contended", contended)

	counters, err := engine.AttemptCounters(ctx, hot)
	if err != nil {
		fmt.Fprintf(os.Stderr, "counters failed: %v\n", err)
		os.Exit(1)
	}
	recorded := counters.Success + counters.Failed
	want := uint64(contended.ops) - uint64(contended.failures)
	fmt.Printf("hot identity counters: success=%d failed=%d (want total %d)\n", counters.Success, counters.Failed, want)
	if recorded != want {
		fmt.Fprintln(os.Stderr, "counter drift detected")
		os.Exit(1)
	}
}

// authenticate presents a matching face about two thirds of the time. A
// genuine non-match is an expected outcome, not an error.
func authenticate(ctx context.Context, engine *goFaceAuth.Engine, identity string, r *rand.Rand) error {
	tag := byte('m')
	if r.Intn(3) == 0 {
		tag = 'x'
	}
	_, err := engine.Authenticate(ctx, goFaceAuth.AuthenticateRequest{
		Identity: identity,
		Image:    providertest.Image(tag, 1024),
	})
	if err != nil && !isVerdict(err) {
		return err
	}
	return nil
}

func isVerdict(err error) bool {
	return errors.Is(err, goFaceAuth.ErrNoMatch)
}

func runPhase(ops, concurrency int, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
