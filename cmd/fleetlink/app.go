package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"github.com/fleetlink/fleetlink-int/internal/api"
	"github.com/fleetlink/fleetlink-int/internal/cache"
	"github.com/fleetlink/fleetlink-int/internal/config"
	"github.com/fleetlink/fleetlink-int/internal/httpx"
	"github.com/fleetlink/fleetlink-int/internal/logging"
	"github.com/fleetlink/fleetlink-int/internal/metrics"
	"github.com/fleetlink/fleetlink-int/internal/services"
	"github.com/fleetlink/fleetlink-int/internal/store"
)

// app bundles the constructed pipeline and services for one CLI run. One
// client instance (and therefore one rate budget) serves every service,
// preserving the single-quota semantics without global state.
type app struct {
	cfg         *config.Config
	client      *api.Client
	devices     *services.DeviceService
	apps        *services.AppService
	groups      *services.GroupService
	assignments *services.AssignmentService
}

// buildApp loads config and wires the pipeline, store, and services.
func buildApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log := logging.NewDefault()

	clientOpts := []api.ClientOption{api.WithLogger(log.Z())}

	// Long-running syncs can expose pipeline counters for scraping.
	metricSet := metrics.Nop()
	if metricsListen != "" {
		reg := prometheus.NewRegistry()
		metricSet = metrics.New(reg)
		clientOpts = append(clientOpts, api.WithMetrics(metricSet))

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			if err := http.ListenAndServe(metricsListen, mux); err != nil {
				log.Warn().Err(err).Msg("metrics listener stopped")
			}
		}()
	}

	// Saved proxy configs never hold the password; ask for it up front so
	// the failure mode is a prompt, not a mid-sync auth error.
	if httpx.NeedsProxyPassword(cfg) {
		fmt.Fprintf(os.Stderr, "Proxy password for %s (input hidden): ", cfg.Proxy.User)
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, fmt.Errorf("failed to read proxy password: %w", err)
		}
		cfg.Proxy.Password = string(raw)
	}

	client, err := api.NewClient(cfg, api.StaticTokenProvider(cfg.AccessToken), clientOpts...)
	if err != nil {
		return nil, err
	}

	path := storePath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("cannot resolve home directory: %w", err)
		}
		path = filepath.Join(home, ".config", "fleetlink", "store.db")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("cannot create store directory: %w", err)
	}

	localStore, err := store.OpenSQLite(path)
	if err != nil {
		return nil, err
	}

	deps := services.Deps{
		Client:  client,
		Cache:   cache.NewCoordinator(cfg),
		Store:   localStore,
		Log:     log.Z(),
		Metrics: metricSet,
	}

	return &app{
		cfg:         cfg,
		client:      client,
		devices:     services.NewDeviceService(deps),
		apps:        services.NewAppService(deps),
		groups:      services.NewGroupService(deps),
		assignments: services.NewAssignmentService(deps),
	}, nil
}
