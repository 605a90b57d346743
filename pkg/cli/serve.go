package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/stationops/wrench/pkg/cli/config"
	httpctrl "github.com/stationops/wrench/pkg/controller/http"
	"github.com/stationops/wrench/pkg/repository/memory"
	"github.com/stationops/wrench/pkg/usecase"
	"github.com/stationops/wrench/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var baseURL string
	var repoCfg config.Repository
	var seedCfg config.Seed

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("WRENCH_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "base-url",
			Usage:       "Externally reachable base URL, used for OAuth redirects (e.g., https://your-domain.com)",
			Value:       "http://localhost:8080",
			Sources:     cli.EnvVars("WRENCH_BASE_URL"),
			Destination: &baseURL,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, seedCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			seed, err := seedCfg.Load()
			if err != nil {
				return err
			}
			if seed != nil {
				if err := seed.Apply(ctx, repo); err != nil {
					return goerr.Wrap(err, "failed to apply seed config")
				}
				logging.Default().Info("Seed config applied",
					"connectors", len(seed.Connectors),
					"technicians", len(seed.Technicians),
					"parts", len(seed.Parts),
				)
			}

			uc := usecase.New(repo, usecase.WithFlowCache(memory.NewFlowCache()))

			handler := httpctrl.New(uc, httpctrl.WithBaseURL(baseURL))
			server := &http.Server{
				Addr:              addr,
				Handler:           handler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr, "base_url", baseURL)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
