package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hylla/sitebook/internal/adapters/server"
	"github.com/hylla/sitebook/internal/app"
	"github.com/hylla/sitebook/internal/scheduler"
)

// defaultJobTimeout bounds one scheduled job run.
const defaultJobTimeout = 2 * time.Minute

func newServeCommand(opts *rootOptions) *cobra.Command {
	var (
		bind    string
		origins []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API, MCP tools, live websocket feed, and scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := openRuntime(opts, cmd.ErrOrStderr(), true)
			if err != nil {
				return err
			}
			defer rt.Close()

			cfg := rt.cfg
			if bind != "" {
				cfg.Server.HTTPBind = bind
			}
			return runServe(cmd.Context(), rt, server.Config{
				HTTPBind:        cfg.Server.HTTPBind,
				APIEndpoint:     cfg.Server.APIEndpoint,
				MCPEndpoint:     cfg.Server.MCPEndpoint,
				WSEndpoint:      cfg.Server.WSEndpoint,
				MetricsEndpoint: cfg.Server.MetricsEndpoint,
				ServerName:      opts.AppName,
				ServerVersion:   version,
				AllowedOrigins:  origins,
			})
		},
	}
	cmd.Flags().StringVar(&bind, "bind", "", "override server.http_bind")
	cmd.Flags().StringSliceVar(&origins, "allow-origin", nil, "websocket origin to accept (repeatable; default same-origin)")
	return cmd
}

// runServe starts the live board, the scheduler, and the HTTP server, and
// stops all of them when ctx ends or any one fails.
func runServe(ctx context.Context, rt *runtimeEnv, serverCfg server.Config) error {
	logger := rt.logger

	board := app.NewLiveBoard(rt.repo, rt.service.Policy(), rt.service.CurrentWeek(), nil, logger, rt.metrics)
	if err := board.Start(ctx, rt.notifier); err != nil {
		return fmt.Errorf("start live board: %w", err)
	}
	defer board.Stop()

	sched, err := scheduler.New(scheduler.Config{
		BudgetRecalcCron:  rt.cfg.Scheduler.BudgetRecalcCron,
		PayrollCommitCron: rt.cfg.Scheduler.PayrollCommitCron,
		BoardRollCron:     rt.cfg.Scheduler.BoardRollCron,
		JobTimeout:        defaultJobTimeout,
	}, rt.service, board, logger)
	if err != nil {
		return fmt.Errorf("configure scheduler: %w", err)
	}
	logger.Info("scheduler configured", "jobs", sched.Jobs())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		return server.Run(gctx, serverCfg, server.Dependencies{
			Service:  rt.api,
			Board:    board,
			Feed:     rt.notifier,
			Gatherer: rt.registry,
			Ready:    rt.repo.Ping,
			Logger:   logger,
		})
	})
	err = g.Wait()
	if err != nil {
		logger.Error("serve stopped", "err", err)
		return err
	}
	logger.Info("serve stopped")
	return nil
}
