package cli

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/retouch/pkg/effect"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	c, _ := testCLI(t)
	root := c.RootCommand()

	want := []string{"serve", "apply", "edit", "cache", "completion"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			c, out := testCLI(t)
			root := c.RootCommand()
			root.SetArgs([]string{"completion", shell})
			if err := root.Execute(); err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(out.String(), "retouch") {
				t.Error("completion script does not mention the binary")
			}
		})
	}
}

func TestParseEffects(t *testing.T) {
	got, err := parseEffects([]string{"grayscale", " ", "crop=1:2:3:4", "sepia"})
	if err != nil {
		t.Fatal(err)
	}
	want := []effect.Effect{effect.Grayscale(), effect.Crop(1, 2, 3, 4), effect.Sepia()}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("effect %d = %v, want %v", i, got[i], want[i])
		}
	}

	for _, bad := range [][]string{nil, {""}, {"blur"}, {"crop=1:2"}} {
		if _, err := parseEffects(bad); err == nil {
			t.Errorf("parseEffects(%q) should fail", bad)
		}
	}
}

func TestApplyCommand(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RETOUCH_CACHE_BACKEND", "none")

	img := image.NewNRGBA(image.Rect(0, 0, 12, 8))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	in := filepath.Join(dir, "in.png")
	if err := os.WriteFile(in, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "out.png")

	c, _ := testCLI(t)
	root := c.RootCommand()
	root.SetOut(io.Discard)
	root.SetArgs([]string{"apply", in, "-e", "grayscale,crop=2:2:5:3", "-e", "sepia", "-o", out})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 5 || cfg.Height != 3 {
		t.Errorf("output is %dx%d, want 5x3", cfg.Width, cfg.Height)
	}
}

func TestApplyCommandRejectsOversized(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RETOUCH_CACHE_BACKEND", "none")
	t.Setenv("RETOUCH_UPLOAD_MAX_BYTES", "16")

	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 8))); err != nil {
		t.Fatal(err)
	}
	in := filepath.Join(dir, "in.png")
	if err := os.WriteFile(in, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	c, _ := testCLI(t)
	root := c.RootCommand()
	root.SetErr(io.Discard)
	root.SetArgs([]string{"apply", in, "-e", "sepia", "-o", filepath.Join(dir, "out.png")})
	err := root.Execute()
	if err == nil || !strings.Contains(err.Error(), "exceeds") {
		t.Errorf("error = %v, want a size error", err)
	}
}
