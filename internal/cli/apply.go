package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/retouch/pkg/editor"
	"github.com/matzehuels/retouch/pkg/effect"
	"github.com/matzehuels/retouch/pkg/render"
)

type applyOptions struct {
	effects []string
	output  string
	noCache bool
}

// applyCommand creates the "apply" command for batch edits.
func (c *CLI) applyCommand() *cobra.Command {
	var opts applyOptions

	cmd := &cobra.Command{
		Use:   "apply <image>",
		Short: "Apply effects to an image and save the result as PNG",
		Long: `Apply effects to an image in order and save the result as PNG.

Effects are grayscale, sepia and crop=x:y:w:h (pixels, origin top-left).`,
		Example: `  retouch apply photo.jpg --effect grayscale
  retouch apply photo.jpg -e sepia -e crop=10:10:200:150 -o out.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runApply(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.effects, "effect", "e", nil, "effects to apply, in order (repeatable or comma-separated)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", render.DownloadFilename, "output file")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the effect cache")
	_ = cmd.MarkFlagRequired("effect")

	return cmd
}

func (c *CLI) runApply(ctx context.Context, path string, opts applyOptions) error {
	effects, err := parseEffects(opts.effects)
	if err != nil {
		return err
	}

	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	runner := c.newRunner(ctx, cfg, opts.noCache)
	defer runner.Cache.Close()

	sess := editor.New(editor.Options{
		MaxUploadBytes: cfg.Upload.MaxBytes,
		Processor:      runner,
		Logger:         c.Logger,
	})
	defer sess.Close()

	prog := newProgress(c.Logger)
	if err := uploadFile(ctx, sess, path); err != nil {
		return err
	}
	src, err := sess.Current()
	if err != nil {
		return err
	}

	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Applying %d effects...", len(effects)))
	spinner.Start()
	result, err := runner.Execute(ctx, src, effects)
	if err != nil {
		spinner.StopWithError(err.Error())
		return err
	}
	spinner.Stop()

	if err := sess.CommitResults(result.States[1:]...); err != nil {
		return err
	}
	_, data, err := sess.Download(ctx)
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}

	prog.done(fmt.Sprintf("Applied %d effects", result.Stats.Applied))
	printSuccess("Saved %s", StyleHighlight.Render(opts.output))
	st := sess.Status()
	printStats(st.Width, st.Height, result.Stats.Applied, result.Stats.CacheHits)
	printFile(opts.output)
	return nil
}

// parseEffects parses every --effect value.
func parseEffects(specs []string) ([]effect.Effect, error) {
	effects := make([]effect.Effect, 0, len(specs))
	for _, s := range specs {
		if strings.TrimSpace(s) == "" {
			continue
		}
		e, err := effect.Parse(s)
		if err != nil {
			return nil, err
		}
		effects = append(effects, e)
	}
	if len(effects) == 0 {
		return nil, fmt.Errorf("no effects given")
	}
	return effects, nil
}

// uploadFile loads path into sess.
func uploadFile(ctx context.Context, sess *editor.Session, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return sess.Upload(ctx, filepath.Base(path), f)
}
