package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"floordash"
	"floordash/internal/andon"
	"floordash/internal/handlers"
	"floordash/internal/logger"
	"floordash/internal/oee"
	"floordash/internal/repository"
	"floordash/internal/server"
	"floordash/internal/service"

	"github.com/spf13/viper"
)

const defaultSimTick = 1 * time.Second

func main() {
	// init logger
	log := logger.Get(logger.InfoLevel)

	// load config.yml
	if err := loadConfig(); err != nil {
		log.Fatalw("error reading config", "err", err)
	}

	// open DB
	db, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(db)
	services := service.NewService(repos, serviceConfig(), log)
	apiHandler := handlers.NewHandler(services, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start telemetry simulator (via composed service)
	go services.Simulator.Run(ctx, simTick())

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, services, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	setConfigDefaults()
	if err := viper.ReadInConfig(); err != nil {
		// run on defaults when no config file is present
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}
	return nil
}

func setConfigDefaults() {
	viper.SetDefault("port", "8080")
	viper.SetDefault("db.path", "floordash.db")
	viper.SetDefault("oee.current_window", oee.DefaultCurrentWindow)
	viper.SetDefault("oee.summary_window", oee.DefaultSummaryWindow)
	viper.SetDefault("hub.queue_capacity", 64)
	viper.SetDefault("sim.enabled", false)
	viper.SetDefault("sim.tick", defaultSimTick)
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "floordash.db")
		dbPath = "floordash.db"
	}
	return repository.InitDB(dbPath)
}

// serviceConfig assembles the core tuning knobs from viper.
func serviceConfig() service.Config {
	policy := andon.DefaultPolicy()
	if d := viper.GetDuration("andon.escalation_interval"); d > 0 {
		policy.Interval = d
	}
	if n := viper.GetInt("andon.max_tier"); n > 0 {
		policy.MaxTier = n
	}
	for sev, raw := range viper.GetStringMapString("andon.severity_intervals") {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			policy.BySeverity[floordash.Severity(sev)] = d
		}
	}

	var simLines []service.SimLine
	_ = viper.UnmarshalKey("sim.lines", &simLines)

	return service.Config{
		Oee: oee.Config{
			CurrentWindow: viper.GetDuration("oee.current_window"),
			SummaryWindow: viper.GetDuration("oee.summary_window"),
		},
		Policy:   policy,
		QueueCap: viper.GetInt("hub.queue_capacity"),
		Sim: service.SimConfig{
			Enabled: viper.GetBool("sim.enabled"),
			Lines:   simLines,
		},
	}
}

func simTick() time.Duration {
	if d := viper.GetDuration("sim.tick"); d > 0 {
		return d
	}
	return defaultSimTick
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, services *service.Service, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// close open aggregation windows so the summary tier reaches the archive
	services.Flush()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
