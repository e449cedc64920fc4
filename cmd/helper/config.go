package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/chaosswarm/chaosswarm/pkg/agent"
	"github.com/chaosswarm/chaosswarm/pkg/coordinator"
	"github.com/chaosswarm/chaosswarm/pkg/observability"
	"github.com/chaosswarm/chaosswarm/pkg/server"
)

// Roles a helper can run in
const (
	RoleAll         = "all"
	RoleCoordinator = "coordinator"
	RoleExecutor    = "executor"
)

// Timeouts is the layered timeout budget. Each layer must be strictly
// shorter than the one above it.
type Timeouts struct {
	Request   time.Duration
	Dispatch  time.Duration
	Execution time.Duration
	Swarm     time.Duration
}

// Config is the fully resolved helper configuration
type Config struct {
	BindAddr    string
	MetricsAddr string
	Role        string
	LogLevel    string
	LogFormat   string

	DiscoveryLabel string
	HelperPort     int
	HostnameLength int
	MaxTargets     int

	Actions  map[string]string
	Timeouts Timeouts

	ContainerRuntime   string
	ContainerSocket    string
	ContainerNamespace string
	DockerHost         string

	Tracing observability.TracerConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("bind_addr", "0.0.0.0:8080")
	v.SetDefault("metrics_addr", "0.0.0.0:9090")
	v.SetDefault("role", RoleAll)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
	v.SetDefault("discovery.label", coordinator.DefaultDiscoveryLabel)
	v.SetDefault("discovery.port", coordinator.DefaultHelperPort)
	v.SetDefault("discovery.hostname_length", coordinator.DefaultHostnameLength)
	v.SetDefault("selection.max_targets", coordinator.DefaultMaxTargets)
	v.SetDefault("actions", agent.DefaultActions())
	v.SetDefault("timeouts.request", server.DefaultRequestTimeout)
	v.SetDefault("timeouts.dispatch", coordinator.DefaultDispatchTimeout)
	v.SetDefault("timeouts.execution", agent.DefaultExecutionTimeout)
	v.SetDefault("timeouts.swarm", coordinator.DefaultSwarmTimeout)
	v.SetDefault("container.runtime", "docker")
	v.SetDefault("container.namespace", "moby")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.insecure", true)
}

// loadConfig reads the configuration out of viper and validates it
func loadConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		BindAddr:       v.GetString("bind_addr"),
		MetricsAddr:    v.GetString("metrics_addr"),
		Role:           strings.ToLower(v.GetString("role")),
		LogLevel:       v.GetString("log_level"),
		LogFormat:      v.GetString("log_format"),
		DiscoveryLabel: v.GetString("discovery.label"),
		HelperPort:     v.GetInt("discovery.port"),
		HostnameLength: v.GetInt("discovery.hostname_length"),
		MaxTargets:     v.GetInt("selection.max_targets"),
		Actions:        v.GetStringMapString("actions"),
		Timeouts: Timeouts{
			Request:   v.GetDuration("timeouts.request"),
			Dispatch:  v.GetDuration("timeouts.dispatch"),
			Execution: v.GetDuration("timeouts.execution"),
			Swarm:     v.GetDuration("timeouts.swarm"),
		},
		ContainerRuntime:   v.GetString("container.runtime"),
		ContainerSocket:    v.GetString("container.socket"),
		ContainerNamespace: v.GetString("container.namespace"),
		DockerHost:         v.GetString("docker_host"),
		Tracing: observability.TracerConfig{
			Enabled:        v.GetBool("tracing.enabled"),
			Endpoint:       v.GetString("tracing.endpoint"),
			ServiceName:    "chaos-swarm-helper",
			ServiceVersion: Version,
			Role:           strings.ToLower(v.GetString("role")),
			SampleRate:     v.GetFloat64("tracing.sample_rate"),
			Insecure:       v.GetBool("tracing.insecure"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the helper configuration
func (c *Config) Validate() error {
	switch c.Role {
	case RoleAll, RoleCoordinator, RoleExecutor:
	default:
		return fmt.Errorf("invalid role %q (supported: %s, %s, %s)", c.Role, RoleAll, RoleCoordinator, RoleExecutor)
	}
	if c.BindAddr == "" {
		return fmt.Errorf("bind address is required")
	}
	if c.RunsExecutor() && len(c.Actions) == 0 {
		return fmt.Errorf("at least one action is required")
	}
	if c.RunsCoordinator() && c.DiscoveryLabel == "" {
		return fmt.Errorf("discovery label is required")
	}
	if c.MaxTargets < 1 {
		return fmt.Errorf("selection.max_targets must be at least 1, got %d", c.MaxTargets)
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("tracing endpoint is required when tracing is enabled")
	}

	t := c.Timeouts
	if t.Execution <= 0 || t.Dispatch <= 0 || t.Request <= 0 || t.Swarm <= 0 {
		return fmt.Errorf("all timeouts must be positive")
	}
	if t.Dispatch <= t.Execution {
		return fmt.Errorf("timeouts.dispatch (%s) must be longer than timeouts.execution (%s)", t.Dispatch, t.Execution)
	}
	if t.Request <= t.Dispatch {
		return fmt.Errorf("timeouts.request (%s) must be longer than timeouts.dispatch (%s)", t.Request, t.Dispatch)
	}
	if t.Request <= t.Swarm {
		return fmt.Errorf("timeouts.request (%s) must be longer than timeouts.swarm (%s)", t.Request, t.Swarm)
	}
	return nil
}

// RunsCoordinator reports whether /submit is served
func (c *Config) RunsCoordinator() bool {
	return c.Role == RoleAll || c.Role == RoleCoordinator
}

// RunsExecutor reports whether /execute is served
func (c *Config) RunsExecutor() bool {
	return c.Role == RoleAll || c.Role == RoleExecutor
}
