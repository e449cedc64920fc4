package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/docker/docker/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/chaosswarm/chaosswarm/pkg/agent"
	"github.com/chaosswarm/chaosswarm/pkg/cluster"
	"github.com/chaosswarm/chaosswarm/pkg/coordinator"
	"github.com/chaosswarm/chaosswarm/pkg/observability"
	containerruntime "github.com/chaosswarm/chaosswarm/pkg/runtime"
	"github.com/chaosswarm/chaosswarm/pkg/server"
)

var (
	// Build information (set via ldflags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	rootCmd = &cobra.Command{
		Use:   "helper",
		Short: "Chaos Swarm helper - run chaos actions against Docker Swarm tasks",
		Long: `The Chaos Swarm helper runs as a global service on every Swarm node.
It accepts submissions (/submit), resolves the selected tasks, and hands each
one to the helper on the task's node, which runs the action locally (/execute).`,
		SilenceUsage: true,
		RunE:         run,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file path")
	flags.String("bind-addr", "0.0.0.0:8080", "HTTP API bind address")
	flags.String("metrics-addr", "0.0.0.0:9090", "Metrics server bind address")
	flags.String("role", RoleAll, "Surfaces to serve (all, coordinator, executor)")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("log-format", "json", "Log format (json, console)")
	flags.String("discovery-label", coordinator.DefaultDiscoveryLabel, "Label identifying the helper service")
	flags.Int("discovery-port", coordinator.DefaultHelperPort, "Port helpers listen on")
	flags.Int("max-targets", coordinator.DefaultMaxTargets, "Largest accepted target count")
	flags.Duration("request-timeout", server.DefaultRequestTimeout, "HTTP request timeout")
	flags.Duration("dispatch-timeout", coordinator.DefaultDispatchTimeout, "Coordinator to helper request timeout")
	flags.Duration("execution-timeout", agent.DefaultExecutionTimeout, "Action binary timeout")
	flags.Duration("swarm-timeout", coordinator.DefaultSwarmTimeout, "Swarm API query timeout")
	flags.String("container-runtime", "docker", "Container runtime (docker, containerd)")
	flags.String("container-socket", "", "Container runtime socket path")
	flags.String("container-namespace", "moby", "containerd namespace")
	flags.Bool("tracing-enabled", false, "Export traces over OTLP")
	flags.String("tracing-endpoint", "", "OTLP gRPC endpoint")

	// Bind flags to viper
	viper.BindPFlag("config", flags.Lookup("config"))
	viper.BindPFlag("bind_addr", flags.Lookup("bind-addr"))
	viper.BindPFlag("metrics_addr", flags.Lookup("metrics-addr"))
	viper.BindPFlag("role", flags.Lookup("role"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("log_format", flags.Lookup("log-format"))
	viper.BindPFlag("discovery.label", flags.Lookup("discovery-label"))
	viper.BindPFlag("discovery.port", flags.Lookup("discovery-port"))
	viper.BindPFlag("selection.max_targets", flags.Lookup("max-targets"))
	viper.BindPFlag("timeouts.request", flags.Lookup("request-timeout"))
	viper.BindPFlag("timeouts.dispatch", flags.Lookup("dispatch-timeout"))
	viper.BindPFlag("timeouts.execution", flags.Lookup("execution-timeout"))
	viper.BindPFlag("timeouts.swarm", flags.Lookup("swarm-timeout"))
	viper.BindPFlag("container.runtime", flags.Lookup("container-runtime"))
	viper.BindPFlag("container.socket", flags.Lookup("container-socket"))
	viper.BindPFlag("container.namespace", flags.Lookup("container-namespace"))
	viper.BindPFlag("tracing.enabled", flags.Lookup("tracing-enabled"))
	viper.BindPFlag("tracing.endpoint", flags.Lookup("tracing-endpoint"))

	setDefaults(viper.GetViper())

	// Set up environment variable binding
	viper.SetEnvPrefix("CHAOSSWARM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Chaos Swarm Helper\n")
			fmt.Printf("  Version:    %s\n", Version)
			fmt.Printf("  Build Time: %s\n", BuildTime)
			fmt.Printf("  Git Commit: %s\n", GitCommit)
			fmt.Printf("  Go Version: %s\n", runtime.Version())
			fmt.Printf("  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	rootCmd.AddCommand(inspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func readConfig() (*Config, error) {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := readConfig()
	if err != nil {
		return err
	}

	logger, err := observability.NewLoggerWithFormat(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Starting Chaos Swarm helper",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
		zap.String("role", cfg.Role),
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH),
	)

	tracer, err := observability.NewTracerProvider(cfg.Tracing, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srvConfig := &server.Config{
		BindAddr:       cfg.BindAddr,
		RequestTimeout: cfg.Timeouts.Request,
		Logger:         logger,
	}

	var docker *client.Client
	if cfg.RunsCoordinator() {
		docker, err = cluster.NewClient(cluster.ClientConfig{Host: cfg.DockerHost}, logger)
		if err != nil {
			return err
		}
		defer docker.Close()

		coord, err := coordinator.New(&coordinator.Config{
			Swarm:           docker,
			Logger:          logger,
			DiscoveryLabel:  cfg.DiscoveryLabel,
			HelperPort:      cfg.HelperPort,
			HostnameLength:  cfg.HostnameLength,
			MaxTargets:      cfg.MaxTargets,
			DispatchTimeout: cfg.Timeouts.Dispatch,
			SwarmTimeout:    cfg.Timeouts.Swarm,
			RequestTimeout:  cfg.Timeouts.Request,
		})
		if err != nil {
			return fmt.Errorf("failed to create coordinator: %w", err)
		}
		srvConfig.Coordinator = coord
	}

	if cfg.RunsExecutor() {
		resolver, err := containerruntime.New(containerruntime.Config{
			Kind:      cfg.ContainerRuntime,
			Socket:    cfg.ContainerSocket,
			Namespace: cfg.ContainerNamespace,
			Timeout:   cfg.Timeouts.Execution,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to container runtime: %w", err)
		}
		defer resolver.Close()

		executor, err := agent.New(&agent.Config{
			Actions:  cfg.Actions,
			Timeout:  cfg.Timeouts.Execution,
			Resolver: resolver,
			Logger:   logger,
		})
		if err != nil {
			return fmt.Errorf("failed to create executor: %w", err)
		}
		logger.Info("Executor ready", zap.Strings("actions", executor.KnownActions()))
		srvConfig.Executor = executor
	}

	srv, err := server.New(srvConfig)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	metricsServer := observability.NewMetricsServer(cfg.MetricsAddr, readiness(docker), logger)
	if err := metricsServer.Start(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	<-sigChan
	logger.Info("Received shutdown signal")

	// Graceful shutdown
	logger.Info("Starting graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Timeouts.Request)
	defer shutdownCancel()

	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping server", zap.Error(err))
	}
	if err := metricsServer.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping metrics server", zap.Error(err))
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down tracer", zap.Error(err))
	}

	logger.Info("Shutdown complete")
	return nil
}

// readiness reports ready once the Docker daemon answers. Executor-only
// helpers have no daemon dependency of their own.
func readiness(docker *client.Client) observability.ReadinessCheck {
	if docker == nil {
		return nil
	}
	return func(ctx context.Context) error {
		_, err := docker.Ping(ctx)
		return err
	}
}
