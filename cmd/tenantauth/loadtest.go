package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	tenantAuth "github.com/MrEthical07/tenantAuth"
	"github.com/MrEthical07/tenantAuth/password"
)

type loadtestOptions struct {
	users       int
	tenants     int
	concurrency int
	ops         int
}

func newLoadtestCommand(root *rootOptions) *cobra.Command {
	opts := &loadtestOptions{}
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Measure login, validate and lock throughput against Redis or miniredis",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.users <= 0 || opts.tenants <= 0 || opts.concurrency <= 0 || opts.ops <= 0 {
				return errors.New("users, tenants, concurrency and ops must be > 0")
			}
			return runLoadtest(cmd.Context(), root, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().IntVar(&opts.users, "users", 1000, "users to seed per tenant")
	cmd.Flags().IntVar(&opts.tenants, "tenants", 4, "number of tenants")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 64, "concurrent workers")
	cmd.Flags().IntVar(&opts.ops, "ops", 20000, "validate and lock operations; login runs one per seeded user up to this count")
	return cmd
}

type seededUser struct {
	tenantID string
	username string
}

func runLoadtest(ctx context.Context, root *rootOptions, opts *loadtestOptions, out io.Writer) error {
	cfg, err := root.loadConfig(func(v *viper.Viper) {
		if v.GetString("token.secret") == "" {
			secret, err := randomSecret()
			if err == nil {
				v.Set("token.secret", secret)
			}
		}
		v.Set("security.enable_ip_throttle", false)
	})
	if err != nil {
		return err
	}
	logger := root.leveledLogger(cfg)

	rdb, closeRedis, err := openRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	store := tenantAuth.NewMemoryUserStore(password.NewBcrypt(4))
	seeded := make([]seededUser, 0, opts.users*opts.tenants)
	fmt.Fprintf(out, "seeding %d users in %d tenants...\n", opts.users*opts.tenants, opts.tenants)
	for t := 0; t < opts.tenants; t++ {
		tenantID := fmt.Sprintf("t%d", t)
		for u := 0; u < opts.users; u++ {
			username := fmt.Sprintf("user-%d", u)
			rec := tenantAuth.UserRecord{
				UserID:   fmt.Sprintf("%s-%d", tenantID, u),
				Username: username,
				TenantID: tenantID,
				Roles:    []string{"ROLE_USER"},
				Enabled:  true,
			}
			if err := store.Add(rec, loadtestPassword); err != nil {
				return err
			}
			seeded = append(seeded, seededUser{tenantID: tenantID, username: username})
		}
	}

	engine, err := tenantAuth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(store).
		WithPermissions(defaultPermissions).
		WithRoles(defaultRoles).
		WithLogger(logger).
		WithMetricsEnabled(true).
		WithLatencyHistograms(true).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	logins := opts.ops
	if logins > len(seeded) {
		logins = len(seeded)
	}
	tokens := make([]issuedToken, logins)
	loginStats := runPhase(logins, opts.concurrency, func(i int, _ *rand.Rand) error {
		u := seeded[i]
		return tenantAuth.RunInTenant(ctx, u.tenantID, func(ctx context.Context) error {
			res, err := engine.Login(ctx, u.username, loadtestPassword)
			if err != nil {
				return err
			}
			tokens[i] = issuedToken{tenantID: u.tenantID, token: res.Token}
			return nil
		})
	})

	validateStats := runPhase(opts.ops, opts.concurrency, func(_ int, r *rand.Rand) error {
		tok := tokens[r.Intn(len(tokens))]
		if tok.token == "" {
			return errors.New("login failed for this user")
		}
		return tenantAuth.RunInTenant(ctx, tok.tenantID, func(ctx context.Context) error {
			_, err := engine.ValidateAndExtract(ctx, tok.token)
			return err
		})
	})

	lockStats := runPhase(opts.ops, opts.concurrency, func(_ int, r *rand.Rand) error {
		tenantID := fmt.Sprintf("t%d", r.Intn(opts.tenants))
		resource := fmt.Sprintf("%d", r.Intn(loadtestLockResources))
		return tenantAuth.RunInTenant(ctx, tenantID, func(ctx context.Context) error {
			return engine.ExecuteWithLock(ctx, "loadtest", "update", resource, 0, func(context.Context) error {
				return nil
			})
		})
	})

	fmt.Fprintln(out, "---- results ----")
	printStats(out, "login", loginStats)
	printStats(out, "validate", validateStats)
	printStats(out, "lock", lockStats)
	snap := engine.MetricsSnapshot()
	fmt.Fprintf(out, "locks: acquired=%d contended=%d timeout=%d\n",
		snap.Counters[tenantAuth.MetricLockAcquired],
		snap.Counters[tenantAuth.MetricLockContended],
		snap.Counters[tenantAuth.MetricLockTimeout])
	return nil
}

const loadtestPassword = "loadtest-password"

// loadtestLockResources is the number of lock names per tenant, kept small
// so workers contend.
const loadtestLockResources = 8

type issuedToken struct {
	tenantID string
	token    string
}

// runPhase runs op ops times across concurrency workers and records each latency.
func runPhase(ops, concurrency int, op func(i int, r *rand.Rand) error) phaseStats {
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
				err := op(i, r)
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
		return phaseStats{total: total, failures: failures}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	stats := phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
	}
	if total > 0 {
		stats.opsPerS = float64(len(samples)) / total.Seconds()
	}
	return stats
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
