package cli

import (
	"context"
	"fmt"
	"image"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/retouch/pkg/editor"
	"github.com/matzehuels/retouch/pkg/effect"
	"github.com/matzehuels/retouch/pkg/errors"
)

// Editor styles
var (
	stripCurrentStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	stripNormalStyle  = lipgloss.NewStyle().Foreground(colorGray)
	stripRedoStyle    = lipgloss.NewStyle().Foreground(colorDim)
	keyStyle          = lipgloss.NewStyle().Foreground(colorWhite).Bold(true)
	cropStyle         = lipgloss.NewStyle().Foreground(colorYellow)
	disabledStyle     = lipgloss.NewStyle().Foreground(colorDim).Strikethrough(true)
)

// opDoneMsg reports the outcome of a session operation run as a tea.Cmd.
type opDoneMsg struct {
	text string
	err  error
}

// EditModel is the bubbletea model for the interactive editor.
type EditModel struct {
	ctx    context.Context
	sess   *editor.Session
	output string

	// crop is the pending rectangle while cropping, in image coordinates.
	crop image.Rectangle

	busy    bool
	message string
	isErr   bool
	width   int
}

// NewEditModel creates an editor model over a session that already holds
// an image. Downloads are written to output.
func NewEditModel(ctx context.Context, sess *editor.Session, output string) EditModel {
	return EditModel{ctx: ctx, sess: sess, output: output}
}

func (m EditModel) Init() tea.Cmd {
	return nil
}

func (m EditModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case opDoneMsg:
		m.busy = false
		m.message, m.isErr = msg.text, msg.err != nil
		if msg.err != nil {
			m.message = errors.UserMessage(msg.err)
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m EditModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" || key == "q" {
		return m, tea.Quit
	}
	if m.busy {
		return m, nil
	}
	if m.sess.Status().Cropping {
		return m.handleCropKey(key)
	}

	switch key {
	case "g":
		return m.run("Applied grayscale", func() error {
			return m.sess.ApplyEffect(m.ctx, effect.KindGrayscale)
		})
	case "s":
		return m.run("Applied sepia", func() error {
			return m.sess.ApplyEffect(m.ctx, effect.KindSepia)
		})
	case "c":
		if err := m.sess.BeginCrop(); err != nil {
			m.message, m.isErr = errors.UserMessage(err), true
			return m, nil
		}
		st := m.sess.Status()
		m.crop = image.Rect(0, 0, st.Width, st.Height)
		m.message, m.isErr = "", false
	case "u":
		return m.run("", func() error {
			_, err := m.sess.Undo()
			return err
		})
	case "r":
		return m.run("", func() error {
			_, err := m.sess.Redo()
			return err
		})
	case "R":
		return m.run("Reset to original", m.sess.Reset)
	case "+", "=":
		m.sess.ZoomIn()
	case "-":
		m.sess.ZoomOut()
	case "d":
		return m.run("Saved "+m.output, m.download)
	}
	return m, nil
}

func (m EditModel) handleCropKey(key string) (tea.Model, tea.Cmd) {
	st := m.sess.Status()
	bounds := image.Rect(0, 0, st.Width, st.Height)
	step := max(1, min(st.Width, st.Height)/20)

	switch key {
	case "esc":
		if err := m.sess.CancelCrop(); err != nil {
			m.message, m.isErr = errors.UserMessage(err), true
		} else {
			m.message, m.isErr = "Crop cancelled", false
		}
		return m, nil
	case "enter":
		rect := m.crop
		return m.run(fmt.Sprintf("Cropped to %d×%d", rect.Dx(), rect.Dy()), func() error {
			return m.sess.ConfirmCrop(m.ctx, rect)
		})
	case "left":
		m.crop = moveRect(m.crop, -step, 0, bounds)
	case "right":
		m.crop = moveRect(m.crop, step, 0, bounds)
	case "up":
		m.crop = moveRect(m.crop, 0, -step, bounds)
	case "down":
		m.crop = moveRect(m.crop, 0, step, bounds)
	case "shift+left":
		m.crop = resizeRect(m.crop, -step, 0, bounds)
	case "shift+right":
		m.crop = resizeRect(m.crop, step, 0, bounds)
	case "shift+up":
		m.crop = resizeRect(m.crop, 0, -step, bounds)
	case "shift+down":
		m.crop = resizeRect(m.crop, 0, step, bounds)
	}
	return m, nil
}

// run executes op off the UI goroutine and reports the result.
func (m EditModel) run(success string, op func() error) (tea.Model, tea.Cmd) {
	m.busy = true
	m.message, m.isErr = "Working...", false
	return m, func() tea.Msg {
		return opDoneMsg{text: success, err: op()}
	}
}

func (m EditModel) download() error {
	_, data, err := m.sess.Download(m.ctx)
	if err != nil {
		return err
	}
	return os.WriteFile(m.output, data, 0o644)
}

// moveRect shifts r by (dx, dy) while keeping it inside bounds.
func moveRect(r image.Rectangle, dx, dy int, bounds image.Rectangle) image.Rectangle {
	dx = min(max(dx, bounds.Min.X-r.Min.X), bounds.Max.X-r.Max.X)
	dy = min(max(dy, bounds.Min.Y-r.Min.Y), bounds.Max.Y-r.Max.Y)
	return r.Add(image.Pt(dx, dy))
}

// resizeRect grows or shrinks r from its bottom-right corner, keeping at
// least one pixel and staying inside bounds.
func resizeRect(r image.Rectangle, dw, dh int, bounds image.Rectangle) image.Rectangle {
	r.Max.X = min(max(r.Max.X+dw, r.Min.X+1), bounds.Max.X)
	r.Max.Y = min(max(r.Max.Y+dh, r.Min.Y+1), bounds.Max.Y)
	return r
}

// historyStrip renders the history as a row of nodes with the cursor marked.
// States after the cursor (redoable) are dimmed.
func historyStrip(cursor, length int) string {
	nodes := make([]string, length)
	for i := range nodes {
		switch {
		case i == cursor:
			nodes[i] = stripCurrentStyle.Render("◉")
		case i > cursor:
			nodes[i] = stripRedoStyle.Render("○")
		default:
			nodes[i] = stripNormalStyle.Render("●")
		}
	}
	return strings.Join(nodes, stripNormalStyle.Render("─"))
}

func (m EditModel) View() string {
	st := m.sess.Status()
	var b strings.Builder

	b.WriteString(StyleTitle.Render("retouch"))
	if st.Filename != "" {
		b.WriteString(" " + StyleDim.Render(st.Filename))
	}
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "%s %s   %s %s\n",
		StyleDim.Render("size"), StyleValue.Render(fmt.Sprintf("%d×%d", st.Width, st.Height)),
		StyleDim.Render("zoom"), StyleValue.Render(fmt.Sprintf("%.0f%%", st.Zoom*100)))
	fmt.Fprintf(&b, "%s %s %s\n\n",
		StyleDim.Render("history"), historyStrip(st.Cursor, st.Length),
		StyleDim.Render(fmt.Sprintf("%d/%d", st.Cursor+1, st.Length)))

	if st.Cropping {
		r := m.crop
		b.WriteString(cropStyle.Render(fmt.Sprintf("crop x=%d y=%d w=%d h=%d", r.Min.X, r.Min.Y, r.Dx(), r.Dy())))
		b.WriteString("\n")
		b.WriteString(StyleDim.Render("arrows move  shift+arrows resize  ⏎ confirm  esc cancel"))
	} else {
		b.WriteString(m.helpLine(st))
	}
	b.WriteString("\n\n")

	if m.message != "" {
		if m.isErr {
			b.WriteString(StyleError.Render(m.message))
		} else {
			b.WriteString(StyleSuccess.Render(m.message))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m EditModel) helpLine(st editor.Status) string {
	item := func(key, label string, enabled bool) string {
		if !enabled {
			return disabledStyle.Render(key + " " + label)
		}
		return keyStyle.Render(key) + " " + StyleDim.Render(label)
	}
	items := []string{
		item("g", "grayscale", st.EffectsAvailable),
		item("s", "sepia", st.EffectsAvailable),
		item("c", "crop", st.EffectsAvailable),
		item("u", "undo", st.CanUndo),
		item("r", "redo", st.CanRedo),
		item("R", "reset", st.Length > 1),
		item("+/-", "zoom", true),
		item("d", "download", true),
		item("q", "quit", true),
	}
	if !st.EffectsAvailable {
		items = append(items, StyleWarning.Render("effects unavailable"))
	}
	return strings.Join(items, "  ")
}
