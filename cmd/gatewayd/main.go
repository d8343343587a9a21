// Command gatewayd runs the guarded Oracle query gateway: it wires the rate
// limiter, approval registry, validator, circuit breaker, connection pool,
// and audit emitter into a Dispatcher exposing the four reserved operations
// plus the pool_health introspection op. The process itself does not serve
// those operations over any transport; it builds the Dispatcher and waits
// for a shutdown signal.
//
// Graceful shutdown (SIGINT/SIGTERM) drains in-flight statements and flushes
// the audit buffer before exit; the teacher never needed this since it runs
// one-shot, but a long-lived gateway process does.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/k0kubun/pp/v3"

	"github.com/oracleguard/gateway/approval"
	"github.com/oracleguard/gateway/audit"
	"github.com/oracleguard/gateway/breaker"
	"github.com/oracleguard/gateway/dispatch"
	"github.com/oracleguard/gateway/oracle"
	"github.com/oracleguard/gateway/pool"
	"github.com/oracleguard/gateway/ratelimit"
	"github.com/oracleguard/gateway/util"
	"github.com/oracleguard/gateway/validate"
)

func main() {
	util.InitSlog()
	logger := slog.Default()

	cli := parseOptions(os.Args[1:])
	cfg := cli.oracle

	if cli.debug {
		pp.Println(cfg)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dial := oracle.Dial(cli.oraCfg, logger)

	poolCfg := pool.Config{
		Size:                cfg.PoolSize,
		AcquireTimeout:      cfg.AcquireTimeout(),
		QueryTimeout:        cfg.QueryTimeout(),
		HealthProbeInterval: 30 * time.Second,
	}
	p, err := pool.New(ctx, poolCfg, dial)
	if err != nil {
		logger.Error("failed to open connection pool", "error", err)
		os.Exit(1)
	}
	defer p.Close()

	go p.RunHealthProbe(ctx, logger)

	limiter := ratelimit.New(cfg.RateMax, cfg.RateWindow(), nil)
	registry := approval.New(cfg.ApprovalTTL(), nil)
	validator := validate.New(validate.Config{
		MaxComplexity:   cfg.MaxComplexity,
		MaxRows:         cfg.MaxRows,
		AllowCrossJoins: cfg.AllowCrossJoins,
	})
	brk := breaker.New(breaker.Config{
		FailureThreshold: cfg.FailureThreshold,
		RecoveryTimeout:  cfg.RecoveryTimeout(),
		SuccessThreshold: cfg.SuccessThreshold,
	}, nil)

	emitter := audit.NewEmitter(&audit.StdoutSink{}, cfg.AuditBufferSize)
	defer emitter.Close()

	d := dispatch.New(limiter, registry, validator, brk, p, emitter)
	_ = d // the tool-invocation protocol layer that calls d.Preview/Execute/Describe/List is out of scope (spec.md §1)

	logger.Info("gatewayd ready",
		"pool_size", cfg.PoolSize,
		"max_complexity", cfg.MaxComplexity,
		"max_rows", cfg.MaxRows,
	)

	<-ctx.Done()
	logger.Info("shutting down, draining in-flight statements")
}
