package cli

import (
	"io"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/retouch/pkg/editor"
	"github.com/matzehuels/retouch/pkg/render"
)

type editOptions struct {
	output  string
	noCache bool
}

// editCommand creates the "edit" command running the terminal editor.
func (c *CLI) editCommand() *cobra.Command {
	var opts editOptions

	cmd := &cobra.Command{
		Use:   "edit <image>",
		Short: "Edit an image interactively",
		Long: `Edit an image interactively in the terminal.

Keys: g grayscale, s sepia, c crop (arrows move, shift+arrows resize,
enter confirm, esc cancel), u undo, r redo, R reset, +/- zoom,
d download, q quit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runEdit(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", render.DownloadFilename, "file written by download")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the effect cache")

	return cmd
}

func (c *CLI) runEdit(cmd *cobra.Command, path string, opts editOptions) error {
	ctx := cmd.Context()
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	runner := c.newRunner(ctx, cfg, opts.noCache)
	defer runner.Cache.Close()

	// The terminal belongs to the UI; errors are shown there instead of logged.
	quiet := log.New(io.Discard)
	runner.Logger = quiet
	sess := editor.New(editor.Options{
		MaxUploadBytes: cfg.Upload.MaxBytes,
		Processor:      runner,
		Logger:         quiet,
	})
	defer sess.Close()

	if err := uploadFile(ctx, sess, path); err != nil {
		return err
	}

	p := tea.NewProgram(NewEditModel(ctx, sess, opts.output), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
