package cli

import (
	"context"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/retouch/pkg/buildinfo"
	"github.com/matzehuels/retouch/pkg/cache"
	"github.com/matzehuels/retouch/pkg/config"
	"github.com/matzehuels/retouch/pkg/effect"
	"github.com/matzehuels/retouch/pkg/pipeline"
)

// appName is the application name used for display.
const appName = "retouch"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// configPath is the --config flag value.
	configPath string

	// out receives user-facing output (stdout by default).
	out io.Writer
}

// New creates a CLI that logs to w at level.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		out:    os.Stdout,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "Retouch edits images with undo, redo and reset",
		Long:         `Retouch applies simple edits (grayscale, sepia, crop) to images, keeping a linear history that can be undone, redone and reset. It runs as an HTTP service, a batch command or an interactive terminal editor.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "path to a TOML config file")

	root.AddCommand(c.serveCommand())
	root.AddCommand(c.applyCommand())
	root.AddCommand(c.editCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// loadConfig reads the configuration named by --config plus the environment.
func (c *CLI) loadConfig() (*config.Config, error) {
	return config.Load(c.configPath)
}

// newRunner creates a caching effect runner for cfg.
// A cache that cannot be opened degrades to no caching with a warning.
func (c *CLI) newRunner(ctx context.Context, cfg *config.Config, noCache bool) *pipeline.Runner {
	var ch cache.Cache = cache.NewNullCache()
	if !noCache {
		opened, err := cfg.Cache.OpenCache(ctx)
		if err != nil {
			c.Logger.Warn("cache unavailable, continuing without it", "backend", cfg.Cache.Backend, "err", err)
		} else {
			ch = opened
		}
	}
	r := pipeline.NewRunner(effect.NewImagingProcessor(), ch, cfg.Cache.Keyer(), c.Logger)
	r.TTL = cfg.Cache.TTL
	return r
}
