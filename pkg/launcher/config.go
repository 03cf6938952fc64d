package launcher

import (
	"os"
	"path/filepath"
	"time"

	"github.com/ls-1801/VMLauncher/pkg/procmgr"
)

// Config holds supervisor configuration
type Config struct {
	// Time a node gets between interrupt and kill during teardown
	GracePeriod time.Duration

	// How long a node may take to exit after kill
	KillTimeout time.Duration

	// Readiness deadline for the coordinator (run fatal when exceeded)
	ReadyTimeout time.Duration

	// Readiness deadline for each worker (node fatal when exceeded)
	WorkerReadyTimeout time.Duration

	// Rendered configs are written to ConfigDir/<run id>/<node>.yaml
	ConfigDir string

	// argv per role; the config path flag is appended by the launcher
	CoordinatorCommand []string
	WorkerCommand      []string

	// Extra environment for every node
	Env []string
}

// DefaultConfig returns default supervisor configuration
func DefaultConfig() *Config {
	return &Config{
		GracePeriod:        10 * time.Second,
		KillTimeout:        procmgr.DefaultKillTimeout,
		ReadyTimeout:       60 * time.Second,
		WorkerReadyTimeout: 60 * time.Second,
		ConfigDir:          filepath.Join(os.TempDir(), "vmlauncher"),
		CoordinatorCommand: []string{"nesCoordinator"},
		WorkerCommand:      []string{"nesWorker"},
	}
}

// withDefaults fills zero fields from DefaultConfig
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.GracePeriod <= 0 {
		c.GracePeriod = def.GracePeriod
	}
	if c.KillTimeout <= 0 {
		c.KillTimeout = def.KillTimeout
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = def.ReadyTimeout
	}
	if c.WorkerReadyTimeout <= 0 {
		c.WorkerReadyTimeout = def.WorkerReadyTimeout
	}
	if c.ConfigDir == "" {
		c.ConfigDir = def.ConfigDir
	}
	if len(c.CoordinatorCommand) == 0 {
		c.CoordinatorCommand = def.CoordinatorCommand
	}
	if len(c.WorkerCommand) == 0 {
		c.WorkerCommand = def.WorkerCommand
	}
	return c
}
