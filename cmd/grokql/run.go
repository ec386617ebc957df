package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/saylorsolutions/grokql/pkg/pipeline"
)

type runCommand struct {
	flags *configFlags
}

func addRunCommand(app *kingpin.Application) {
	cmd := &runCommand{}
	run := app.Command("run", "Run the pipeline until all inputs finish or an interrupt arrives.").Action(cmd.run)
	cmd.flags = addConfigFlags(run)
}

func (cmd *runCommand) run(*kingpin.ParseContext) error {
	log := hclog.Default()
	cfg, err := cmd.flags.load()
	if err != nil {
		exitWithErr(err)
	}
	built, err := buildPlumbing(cfg, log)
	if err != nil {
		exitWithErr(err)
	}
	sink, err := buildSink(cfg, built.plan.Schema(), log)
	if err != nil {
		exitWithErr(err)
	}

	reg := prometheus.NewRegistry()
	metrics := pipeline.NewMetrics(reg)
	p, err := pipeline.New(built.sources, built.parser, built.plan, sink, pipeline.Config{
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval.Std(),
		Workers:       cfg.Workers,
		Policy:        built.policy,
		Logger:        log,
		Metrics:       metrics,
	})
	if err != nil {
		exitWithErr(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.MetricsAddr, reg, log)
		})
	}
	g.Go(func() error {
		defer stop()
		return p.Run(gctx)
	})
	runErr := g.Wait()
	if closeErr := sink.Close(); closeErr != nil && runErr == nil {
		runErr = closeErr
	}
	if runErr != nil {
		exitWithErr(runErr)
	}
	log.Info("Done")
	return nil
}

// serveMetrics exposes the registry on /metrics until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, log hclog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("Serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
