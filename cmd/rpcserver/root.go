package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/DeFiCh/jsonrpsee/internal/acl"
	"github.com/DeFiCh/jsonrpsee/internal/config"
	"github.com/DeFiCh/jsonrpsee/internal/middleware"
	"github.com/DeFiCh/jsonrpsee/internal/server"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "rpcserver",
	Short: "rpcserver is a JSON-RPC 2.0 HTTP server with resource quotas",
	Long: `rpcserver serves JSON-RPC 2.0 over HTTP.

It accepts single and batched calls, enforces host/origin/header
allowlists, runs registered methods under per-method resource quotas and
optionally exposes one method as a GET health endpoint.`,
	Version: Version,
	RunE:    run,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.rpcserver.yaml)")

	if err := registerFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to register flags: %v\n", err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".rpcserver")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("RPCSERVER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func run(cmd *cobra.Command, args []string) error {
	var cfg config.Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(&cfg.Log)
	logger.WithField("config", cfg.String()).Info("Starting rpcserver")

	mw := middleware.Chain{middleware.NewLogging(logger)}
	if cfg.Metrics.Addr != "" {
		registry := prometheus.NewRegistry()
		mw = append(mw, middleware.NewMetrics(registry))
		go serveMetrics(cfg.Metrics.Addr, registry, logger)
	}

	builder := server.NewBuilder().
		MaxRequestBodySize(cfg.RPC.MaxRequestBodyBytes()).
		MaxResponseBodySize(cfg.RPC.MaxResponseBodyBytes()).
		MaxLogLength(uint32(cfg.RPC.MaxLogLength)).
		BatchRequestsSupported(cfg.RPC.BatchRequests).
		SetAccessControl(acl.New(acl.Config{
			AllowedHosts:   cfg.ACL.AllowedHosts,
			AllowedOrigins: cfg.ACL.AllowedOrigins,
			AllowedHeaders: cfg.ACL.AllowedHeaders,
		})).
		SetMiddleware(mw).
		WithLogger(logger)

	for _, r := range cfg.Resources {
		if err := builder.RegisterResource(r.Label, r.Capacity, r.Default); err != nil {
			return fmt.Errorf("resource registration failed: %w", err)
		}
	}
	if cfg.Health.Path != "" {
		if err := builder.SetHealthAPI(cfg.Health.Path, cfg.Health.Method); err != nil {
			return fmt.Errorf("health endpoint configuration failed: %w", err)
		}
	}

	srv, err := builder.Build(cfg.HTTP.Addr())
	if err != nil {
		return err
	}

	handle, err := srv.Start(demoMethods(logger))
	if err != nil {
		return err
	}
	logger.WithField("addr", srv.Addr().String()).Info("Server started")

	waitForInterrupt(handle, logger)
	return nil
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	logger.WithField("addr", addr).Info("Serving Prometheus metrics")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.WithError(err).Error("Metrics listener failed")
	}
}

func waitForInterrupt(handle *server.ServerHandle, logger *logrus.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.WithField("signal", sig.String()).Info("Shutting down")

	if err := handle.Stop(); err != nil {
		logger.WithError(err).Error("Stop failed")
		return
	}
	handle.Wait()
	logger.Info("Server shutdown complete")
}

func newLogger(cfg *config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logLevel(cfg.Level))

	switch strings.ToLower(cfg.Format) {
	case config.LogFormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05Z07:00",
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
			FullTimestamp:   true,
		})
	}
	return logger
}

func logLevel(level string) logrus.Level {
	switch level {
	case config.LogLevelDebug:
		return logrus.DebugLevel
	case config.LogLevelInfo:
		return logrus.InfoLevel
	case config.LogLevelWarn:
		return logrus.WarnLevel
	case config.LogLevelError:
		return logrus.ErrorLevel
	case config.LogLevelFatal:
		return logrus.FatalLevel
	default:
		return logrus.InfoLevel
	}
}

func main() {
	Execute()
}
