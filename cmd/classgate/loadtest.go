package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/classgate/passcode"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
)

type loadtestOptions struct {
	subjects    int
	concurrency int
	ops         int
	redisAddr   string
}

// NewLoadtestCmd measures passcode issue and redeem throughput against
// Redis, or an in-process miniredis when no address is given.
func NewLoadtestCmd() *cobra.Command {
	var opts loadtestOptions

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure passcode issue and redeem latency",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.subjects <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
				return oops.Code("CONFIG_INVALID").Errorf("subjects, concurrency and ops must be > 0")
			}
			return runLoadtest(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().IntVar(&opts.subjects, "subjects", 10000, "number of distinct passcode subjects")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 64, "concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 50000, "operations per phase")
	cmd.Flags().StringVar(&opts.redisAddr, "redis-addr", "", "redis address; miniredis when empty")
	return cmd
}

func runLoadtest(ctx context.Context, out io.Writer, opts loadtestOptions) error {
	addr := opts.redisAddr
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			return oops.Code("MINIREDIS_FAILED").Wrap(err)
		}
		defer mr.Close()
		addr = mr.Addr()
		fmt.Fprintf(out, "using miniredis at %s\n", addr)
	} else {
		fmt.Fprintf(out, "using redis at %s\n", addr)
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = client.Close() }()

	engine, err := passcode.New(client, passcode.Config{
		CodeTTL:     10 * time.Minute,
		CodeLength:  6,
		MaxAttempts: 5,
		Pepper:      bytes.Repeat([]byte("l"), 32),
		RedisPrefix: "cgp-loadtest",
	})
	if err != nil {
		return err
	}

	subjects := make([]subjectState, opts.subjects)
	for i := range subjects {
		subjects[i].subject = fmt.Sprintf("email:load-%d@classgate.test", i)
	}

	issue := runPhase(opts, func(r *rand.Rand) error {
		s := &subjects[r.IntN(len(subjects))]
		s.mu.Lock()
		defer s.mu.Unlock()

		code, err := engine.Issue(ctx, s.subject)
		if err != nil {
			return err
		}
		s.code = code
		return nil
	})

	redeem := runPhase(opts, func(r *rand.Rand) error {
		s := &subjects[r.IntN(len(subjects))]
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.code == "" {
			code, err := engine.Issue(ctx, s.subject)
			if err != nil {
				return err
			}
			s.code = code
		}
		res, err := engine.Verify(ctx, s.subject, s.code)
		s.code = ""
		if err != nil {
			return err
		}
		if res != passcode.ResultVerified {
			return fmt.Errorf("unexpected result %s", res)
		}
		return nil
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "issue", issue)
	printStats(out, "redeem", redeem)
	return nil
}

type subjectState struct {
	subject string
	mu      sync.Mutex
	code    string
}

func runPhase(opts loadtestOptions, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    atomic.Int64
		failures  atomic.Int64
		mu        sync.Mutex
		latencies = make([]time.Duration, 0, opts.ops)
	)

	start := time.Now()
	for w := 0; w < opts.concurrency; w++ {
		wg.Add(1)
		go func(worker uint64) {
			defer wg.Done()
			r := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), worker))
			for int(cursor.Add(1)) <= opts.ops {
				t0 := time.Now()
				if err := op(r); err != nil {
					failures.Add(1)
				}
				d := time.Since(t0)

				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(uint64(w))
	}
	wg.Wait()

	return computeStats(time.Since(start), latencies, failures.Load())
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
		return phaseStats{total: total, failures: failures}
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

// percentile expects sorted samples.
func percentile(samples []time.Duration, p int) time.Duration {
	switch {
	case len(samples) == 0:
		return 0
	case p <= 0:
		return samples[0]
	case p >= 100:
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(out io.Writer, name string, s phaseStats) {
	fmt.Fprintf(out, "%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
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
