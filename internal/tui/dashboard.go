// Package tui renders a live terminal dashboard of the drive loop.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/robomower/internal/actuator"
	"github.com/san-kum/robomower/internal/loop"
	"github.com/san-kum/robomower/internal/watchdog"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
)

const (
	barWidth    = 20
	historySize = 60
	sparkWidth  = 40
	queueSize   = 16
)

type reportMsg loop.Report

type model struct {
	title  string
	cancel context.CancelFunc

	report  loop.Report
	seen    bool
	started time.Time
	events  int
	left    []float64
	right   []float64
	width   int
}

func newModel(title string, cancel context.CancelFunc) model {
	return model{
		title:  title,
		cancel: cancel,
		left:   make([]float64, 0, historySize),
		right:  make([]float64, 0, historySize),
		width:  80,
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case reportMsg:
		r := loop.Report(msg)
		if !m.seen {
			m.started = r.Time
			m.seen = true
		}
		m.report = r
		m.events += len(r.Events)
		m.left = push(m.left, float64(r.Values[0])/actuator.Range)
		m.right = push(m.right, float64(r.Values[1])/actuator.Range)
	}
	return m, nil
}

func push(h []float64, v float64) []float64 {
	if len(h) == historySize {
		h = h[1:]
	}
	return append(h, v)
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("           " + cyan.Render(m.title) + "\n")
	b.WriteString(dimmer.Render("    ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n\n")

	if !m.seen {
		b.WriteString("   " + yellow.Render("○") + " " + dim.Render("waiting for input device") + "\n")
		b.WriteString("\n" + dim.Render("   q quit") + "\n")
		return b.String()
	}

	r := m.report
	var icon, status string
	switch {
	case r.Halted:
		icon, status = red.Render("■"), red.Render("halted")
	case r.Watchdog == watchdog.Active:
		icon, status = green.Render("●"), green.Render("active")
	default:
		icon, status = yellow.Render("○"), yellow.Render("stopped")
	}
	fw := dim.Render("engaged")
	if r.Freewheel {
		fw = magenta.Render("freewheel")
	}
	elapsed := r.Time.Sub(m.started).Truncate(100 * time.Millisecond)
	b.WriteString(fmt.Sprintf("   %s %s  %s  %s\n\n", icon, status, fw,
		dim.Render(fmt.Sprintf("tick %d  %s  %d events", r.Tick, elapsed, m.events))))

	for i, ch := range actuator.Channels {
		v := r.Values[i]
		b.WriteString(fmt.Sprintf("   %s %s %s\n",
			dim.Render(ch.String()),
			bar(float64(v)/actuator.Range),
			white.Render(fmt.Sprintf("%6d", v))))
	}
	b.WriteString("\n")

	if len(m.left) > 1 {
		b.WriteString(fmt.Sprintf("   %s %s\n", dim.Render("L"), cyan.Render(sparkline(m.left, sparkWidth))))
		b.WriteString(fmt.Sprintf("   %s %s\n", dim.Render("R"), cyan.Render(sparkline(m.right, sparkWidth))))
	}

	b.WriteString("\n" + dim.Render("   q stop and quit") + "\n")
	return b.String()
}

// bar draws v in [-1, 1] as a bar growing left or right from a center mark.
func bar(v float64) string {
	v = min(max(v, -1), 1)
	n := int(abs(v) * barWidth)
	if v < 0 {
		return dimmer.Render(strings.Repeat("─", barWidth-n)) + yellow.Render(strings.Repeat("█", n)) +
			dim.Render("│") + dimmer.Render(strings.Repeat("─", barWidth))
	}
	return dimmer.Render(strings.Repeat("─", barWidth)) + dim.Render("│") +
		green.Render(strings.Repeat("█", n)) + dimmer.Render(strings.Repeat("─", barWidth-n))
}

func sparkline(data []float64, width int) string {
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	if len(data) > width {
		data = data[len(data)-width:]
	}
	var sb strings.Builder
	for _, v := range data {
		idx := int((min(max(v, -1), 1) + 1) / 2 * 7)
		sb.WriteRune(chars[idx])
	}
	return sb.String()
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// Dashboard is a loop.Observer backed by a bubbletea program. OnTick never
// blocks the loop; reports are dropped while the program is busy.
type Dashboard struct {
	p     *tea.Program
	queue chan loop.Report
}

func New(title string, cancel context.CancelFunc, opts ...tea.ProgramOption) *Dashboard {
	return &Dashboard{
		p:     tea.NewProgram(newModel(title, cancel), opts...),
		queue: make(chan loop.Report, queueSize),
	}
}

func (d *Dashboard) OnTick(r loop.Report) {
	select {
	case d.queue <- r:
	default:
	}
}

// Run blocks until the program exits, either from a key press or Quit.
func (d *Dashboard) Run() error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case r := <-d.queue:
				d.p.Send(reportMsg(r))
			case <-done:
				return
			}
		}
	}()
	_, err := d.p.Run()
	return err
}

func (d *Dashboard) Quit() { d.p.Quit() }
