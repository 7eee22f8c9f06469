package drmpack

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/m1k1o/drmpack/internal/bundle"
	"github.com/m1k1o/drmpack/internal/config"
	"github.com/m1k1o/drmpack/internal/http"
	"github.com/m1k1o/drmpack/internal/pipeline"
	"github.com/m1k1o/drmpack/internal/process"
)

var Service *Main

func init() {
	Service = &Main{
		CreateConfig: &config.Create{},
		ServerConfig: &config.Server{},
	}
}

type Main struct {
	CreateConfig *config.Create
	ServerConfig *config.Server

	logger zerolog.Logger
	server *http.HttpManagerCtx
}

func (main *Main) Preflight() {
	main.logger = log.With().Str("service", "main").Logger()
}

func (main *Main) CreateCommand(cmd *cobra.Command, args []string) error {
	req, err := main.CreateConfig.Request()
	if err != nil {
		return err
	}

	registry, err := bundle.NewRegistry(main.CreateConfig.Templates)
	if err != nil {
		return err
	}
	main.logger.Debug().Str("templates", registry.Source()).Msg("templates loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(process.New(), registry, pipeline.Options{
		PsshParallel: main.CreateConfig.Pssh.Parallel,
		PsshStrict:   main.CreateConfig.Pssh.Strict,
		PsshValidate: main.CreateConfig.Pssh.Validate,
	})

	result, err := p.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Done, please check '%s/' for README and generated files\n", result.OutputDir)
	return nil
}

func (main *Main) Start() {
	main.server = http.New(main.ServerConfig)
	main.server.Start()
}

func (main *Main) Shutdown() {
	if err := main.server.Shutdown(); err != nil {
		main.logger.Err(err).Msg("server shutdown with an error")
	} else {
		main.logger.Debug().Msg("server shutdown")
	}
}

func (main *Main) ServeCommand(cmd *cobra.Command, args []string) {
	main.logger.Info().Str("dir", main.ServerConfig.Dir).Msg("starting bundle server")
	main.Start()
	main.logger.Info().Msg("main ready")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	sig := <-quit

	main.logger.Warn().Msgf("received %s, attempting graceful shutdown", sig)
	main.Shutdown()
	main.logger.Info().Msg("shutdown complete")
}
