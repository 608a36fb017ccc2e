package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gestionlocal/cuenta/permission"
	"github.com/gestionlocal/cuenta/session"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		profiles    = flag.Int("profiles", 10000, "number of logged-in profiles to seed")
		concurrency = flag.Int("concurrency", 128, "number of concurrent workers")
		ops         = flag.Int("ops", 100000, "operations per phase (load + replace)")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = flag.String("prefix", "cuenta:sess", "session key prefix")
	)
	flag.Parse()

	if *profiles <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "profiles, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	stores := make([]*session.RedisStore, *profiles)
	fmt.Printf("seeding %d profiles...\n", *profiles)
	startSeed := time.Now()
	for i := 0; i < *profiles; i++ {
		store := session.NewRedisStore(client, *prefix, "p"+strconv.Itoa(i), 24*time.Hour, session.PlainCodec{})
		if err := store.Save(ctx, buildRecord(i)); err != nil {
			fmt.Fprintf(os.Stderr, "save failed: %v\n", err)
			os.Exit(1)
		}
		stores[i] = store
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	loadStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand, i int) error {
		_, err := stores[r.Intn(len(stores))].Load(ctx)
		return err
	})
	// Replace goes through WATCH/MULTI; hot profiles show the retry cost.
	replaceStats := runPhase(*ops, *concurrency, 6151, func(r *rand.Rand, i int) error {
		stamp := time.Now().UTC().Format(time.RFC3339Nano)
		_, err := stores[r.Intn(len(stores))].Replace(ctx, session.Patch{
			Contacto:          session.String(strconv.Itoa(1100000000 + i)),
			SecurityUpdatedAt: session.String(stamp),
		})
		return err
	})

	fmt.Println("---- results ----")
	printStats("load", loadStats)
	printStats("replace", replaceStats)
}

func runPhase(ops, concurrency int, seedStep int64, op func(r *rand.Rand, i int) error) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seedStep))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r, i)
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
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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

func buildRecord(i int) session.Record {
	now := time.Now().Unix()
	role := permission.RolePublicador
	if i%50 == 0 {
		role = permission.RoleAdminLocal
	}
	return session.Record{
		User: session.User{
			ID:                 "u-" + strconv.Itoa(i),
			PersonaID:          i + 1,
			NombreCompleto:     "Persona " + strconv.Itoa(i),
			Email:              "persona" + strconv.Itoa(i) + "@example.com",
			Estado:             "ALTA",
			CongregacionID:     "c-9738",
			NumeroCongregacion: "9738",
			Username:           "persona." + strconv.Itoa(i),
			EsAdminLocal:       role == permission.RoleAdminLocal,
		},
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
