package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/f-o-x11/openclaw-deployer/internal/config"
	"github.com/f-o-x11/openclaw-deployer/internal/conway"
	"github.com/f-o-x11/openclaw-deployer/internal/logger"
	"github.com/f-o-x11/openclaw-deployer/internal/repository/postgres"
	"github.com/f-o-x11/openclaw-deployer/internal/service/provision"
)

// deployerRuntime bundles the wired service with the resources it owns.
type deployerRuntime struct {
	svc  provision.Service
	pool *pgxpool.Pool
}

// newDeployerRuntime wires the provisioning service from environment config.
func newDeployerRuntime(ctx context.Context) (*deployerRuntime, error) {
	cfg := config.LoadDeployerConfig()
	log := logger.New("openclawctl", slog.LevelInfo)

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	client, err := conway.New(cfg.ConwayAPIURL, cfg.ConwayAPIKey,
		conway.WithHTTPClient(&http.Client{Timeout: cfg.ConwayHTTPTimeout}))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("configure conway client: %w", err)
	}

	repo := postgres.New(pool)
	metrics := provision.NewMetrics(prometheus.DefaultRegisterer)
	svc := provision.New(repo, repo, client, log, cfg, metrics)

	return &deployerRuntime{svc: svc, pool: pool}, nil
}

func (r *deployerRuntime) Close() {
	r.pool.Close()
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
