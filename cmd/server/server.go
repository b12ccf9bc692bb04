package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bourse/internal/api"
	"bourse/internal/clock"
	"bourse/internal/config"
	"bourse/internal/engine"
	"bourse/internal/events"
	"bourse/internal/metrics"
	bnet "bourse/internal/net"
	"bourse/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

func main() {
	envPath := flag.String("env", "", "path to a .env file (default: ./.env if present)")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*envPath)
	setupLogging(cfg.Log)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("market stopped")
	}
	log.Info().Msg("market stopped")
}

func setupLogging(cfg config.Log) {
	zerolog.SetGlobalLevel(cfg.Level)
	if cfg.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

func run(ctx context.Context, cfg config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(reg); err != nil {
		return err
	}

	// Everything the market publishes goes through the dispatcher, so that
	// slow consumers never hold up matching.
	hub := events.NewHub()
	dispatcher := events.NewDispatcher(events.DefaultQueueSize, hub)

	market := engine.New(cfg.Market.Fees(), engine.WithSink(dispatcher))
	gateway := bnet.New(market, bnet.DefaultWorkers)
	dispatcher.Attach(gateway)

	if cfg.Redis.Addr != "" {
		sink := events.NewRedisSink(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel)
		defer sink.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := sink.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Str("address", cfg.Redis.Addr).Msg("redis unreachable, publishing anyway")
		}
		cancel()
		dispatcher.Attach(sink)
		log.Info().Str("address", cfg.Redis.Addr).Str("channel", cfg.Redis.Channel).Msg("publishing events to redis")
	}

	if cfg.SeedSampleData {
		if err := seed(market, cfg); err != nil {
			return err
		}
	}

	sim := clock.New(market,
		clock.WithInterval(cfg.Market.TickInterval),
		clock.WithRange(cfg.Market.MinChangePct, cfg.Market.MaxChangePct),
	)
	health := server.NewServer(sim)
	httpServer := api.NewServer(market, hub, reg, health.Healthy)

	t, _ := tomb.WithContext(ctx)
	t.Go(func() error { return dispatcher.Run(t) })
	t.Go(func() error { return sim.Run(t) })
	t.Go(func() error { return httpServer.Serve(t, cfg.Server.HTTPAddr) })
	t.Go(func() error { return gateway.Run(t, cfg.Server.TCPAddr) })
	t.Go(func() error { return health.Run(t, cfg.Server.GRPCAddr) })

	log.Info().Msg("market open")
	<-t.Dying()
	return t.Wait()
}

func seed(market *engine.Market, cfg config.Config) error {
	for _, c := range cfg.Companies {
		if _, err := market.RegisterCompany(c.Symbol, c.Name, c.Price, c.Shares); err != nil {
			return err
		}
	}
	for _, tr := range cfg.Traders {
		if _, err := market.RegisterTrader(tr.Name, tr.Cash, tr.Portfolio); err != nil {
			return err
		}
	}
	return nil
}
