package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Nohyunjin/omni-secretary/internal/agentloop"
	"github.com/Nohyunjin/omni-secretary/internal/config"
	"github.com/Nohyunjin/omni-secretary/internal/llm"
	"github.com/Nohyunjin/omni-secretary/internal/logging"
	"github.com/Nohyunjin/omni-secretary/internal/server"
	"github.com/Nohyunjin/omni-secretary/internal/toolserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the assistant service",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.SetDefaultLevel(logging.ParseLevel(cfg.LogLevel))
	logger := logging.NewComponentLogger("Serve")

	fmt.Println(cyan("omni-secretary ") + gray(version))
	fmt.Println(gray(fmt.Sprintf("  %d tool server(s) configured, model %s", len(cfg.Servers), cfg.LLM.Model)))

	sup := toolserver.NewSupervisor(cfg)
	registry := toolserver.NewRegistry(sup)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.AutoStart {
		logger.Info("auto-starting enabled tool servers")
		sup.StartAll(ctx)
	}

	loop := agentloop.NewLoop(
		llm.NewOpenAIClient(cfg.LLM),
		registry,
		agentloop.WithMaxIterations(cfg.MaxIterations),
	)

	srv := server.New(cfg, sup, registry, loop)

	var g errgroup.Group
	g.Go(srv.Run)
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown: %v", err)
		}

		sup.StopAll()
		return nil
	})

	return g.Wait()
}
