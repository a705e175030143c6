package command

import (
	"context"
	"fmt"

	"github.com/pixil98/go-service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pixil98/go-starlane/internal/cache"
	"github.com/pixil98/go-starlane/internal/combat"
	"github.com/pixil98/go-starlane/internal/driver"
	"github.com/pixil98/go-starlane/internal/locks"
	"github.com/pixil98/go-starlane/internal/messaging"
	"github.com/pixil98/go-starlane/internal/metrics"
	"github.com/pixil98/go-starlane/internal/multiplier"
	"github.com/pixil98/go-starlane/internal/telemetry"
)

func BuildWorkers(config interface{}) (service.WorkerList, error) {
	cfg, ok := config.(*Config)
	if !ok {
		return nil, fmt.Errorf("unable to cast config")
	}

	cfg.Locks.apply()

	tn, err := cfg.buildTuning()
	if err != nil {
		return nil, fmt.Errorf("loading tuning: %w", err)
	}

	db, err := cfg.Database.buildDB(context.Background())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	mult := multiplier.NewService()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg, mult)

	// Caches
	cacheOpts := []cache.CacheOpt{cache.WithRecorder(m)}
	if l := cfg.Database.writeLimiter(); l != nil {
		cacheOpts = append(cacheOpts, cache.WithWriteLimiter(l))
	}
	manager := cache.NewManager(locks.NewSet(), db, tn, mult, cache.WithCacheOpts(cacheOpts...))

	// Real-time feed
	nats, err := cfg.Nats.buildNatsServer()
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}

	engine := combat.NewEngine(manager,
		combat.WithNotifier(messaging.NewNatsPublisher(nats)),
		combat.WithRecorder(m),
	)

	// Drivers
	battleInterval, _ := parseInterval(cfg.BattleInterval, 0)
	battles := driver.NewDriver("battle", []driver.Ticker{engine, manager.WorldTicker()},
		driver.WithTickLength(battleInterval))

	flush := driver.NewDriver("flush", []driver.Ticker{manager},
		driver.WithTickLength(cfg.flushInterval()))

	workers := service.WorkerList{
		"caches":    manager,
		"nats":      nats,
		"admin":     messaging.NewAdminResponder(nats, mult, manager),
		"battle":    battles,
		"flush":     flush,
		"telemetry": telemetry.NewWorker(cfg.Telemetry.serviceName(), cfg.Telemetry.Endpoint),
	}
	if cfg.Metrics.Addr != "" {
		workers["metrics"] = metrics.NewServer(cfg.Metrics.Addr, reg)
	}

	return workers, nil
}
