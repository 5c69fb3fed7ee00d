package cli

import (
	"github.com/spf13/cobra"

	"github.com/matzehuels/retouch/internal/server"
	"github.com/matzehuels/retouch/pkg/observability"
)

type serveOptions struct {
	addr     string
	maxBytes int64
	noCache  bool
}

// serveCommand creates the "serve" command running the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the edit-session HTTP API",
		Long: `Run the edit-session HTTP API.

Settings come from --config, then RETOUCH_* environment variables, then
the flags below.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().Int64Var(&opts.maxBytes, "max-upload", 0, "upload limit in bytes (overrides upload.max_bytes)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the effect cache")

	return cmd
}

func (c *CLI) runServe(cmd *cobra.Command, opts serveOptions) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if opts.addr != "" {
		cfg.Server.Addr = opts.addr
	}
	if opts.maxBytes > 0 {
		cfg.Upload.MaxBytes = opts.maxBytes
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if lvl := cfg.LogLevel(); lvl < c.Logger.GetLevel() {
		c.SetLogLevel(lvl)
	}

	observability.NewLogHooks(c.Logger).Register()
	defer observability.Reset()

	ctx := cmd.Context()
	runner := c.newRunner(ctx, cfg, opts.noCache)
	defer runner.Cache.Close()

	c.Logger.Info("starting server",
		"addr", cfg.Server.Addr,
		"cache", cfg.Cache.Backend,
		"max_upload", cfg.Upload.MaxBytes,
		"session_ttl", cfg.Session.TTL)

	srv := server.New(server.Options{
		Config:    cfg,
		Processor: runner,
		Logger:    c.Logger,
	})
	return srv.Run(ctx)
}
