// Package tui follows a running session in the terminal.
package tui

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/mindstone/internal/loop"
	"github.com/san-kum/mindstone/internal/session"
	"github.com/san-kum/mindstone/internal/viz"
)

const historyLen = 200

// Feed is a session observer that hands reports to a Monitor. Reports are
// dropped while the UI is behind; the monitor only shows the latest.
type Feed struct {
	ch chan loop.TickReport
}

func NewFeed(size int) *Feed {
	return &Feed{ch: make(chan loop.TickReport, size)}
}

func (f *Feed) OnTick(r loop.TickReport) {
	select {
	case f.ch <- r:
	default:
	}
}

type (
	reportMsg loop.TickReport
	doneMsg   session.Outcome
)

// Sess is the part of a session the monitor controls.
type Sess interface {
	Pause() error
	Resume() error
	Stop()
	State() loop.State
	Done() <-chan struct{}
	Wait() session.Outcome
}

type Monitor struct {
	sess   Sess
	feed   *Feed
	plant  string
	scene  *viz.Scene
	last   loop.TickReport
	errs   []float64
	faults map[loop.FaultKind]int
	note   string
	done   *session.Outcome
	width  int
}

func NewMonitor(s Sess, feed *Feed, plant string) Monitor {
	return Monitor{
		sess:   s,
		feed:   feed,
		plant:  plant,
		scene:  viz.NewScene(60, 14),
		faults: make(map[loop.FaultKind]int),
		width:  80,
	}
}

// Run blocks until the user quits. The returned outcome is nil when the user
// quit before the session ended.
func Run(m Monitor) (*session.Outcome, error) {
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return nil, err
	}
	return final.(Monitor).done, nil
}

func (m Monitor) Init() tea.Cmd { return m.next() }

func (m Monitor) next() tea.Cmd {
	return func() tea.Msg {
		select {
		case r := <-m.feed.ch:
			return reportMsg(r)
		case <-m.sess.Done():
			return doneMsg(m.sess.Wait())
		}
	}
}

func (m Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case reportMsg:
		r := loop.TickReport(msg)
		m.last = r
		if r.Residual != nil {
			m.errs = append(m.errs, r.Residual.Norm())
			if len(m.errs) > historyLen {
				m.errs = m.errs[1:]
			}
		}
		for _, f := range r.Faults {
			m.faults[f.Kind]++
		}
		return m, m.next()
	case doneMsg:
		out := session.Outcome(msg)
		m.done = &out
		return m, nil
	}
	return m, nil
}

func (m Monitor) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "p", " ":
		if m.done != nil {
			return m, nil
		}
		var err error
		if m.sess.State() == loop.Paused {
			err = m.sess.Resume()
		} else {
			err = m.sess.Pause()
		}
		m.note = ""
		if err != nil {
			m.note = err.Error()
		}
	case "s":
		m.sess.Stop()
	case "q", "ctrl+c", "esc":
		if m.done == nil {
			m.sess.Stop()
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m Monitor) View() string {
	var b strings.Builder

	status := m.sess.State().String()
	if m.done != nil {
		status = string(m.done.Reason)
	}
	b.WriteString(viz.Title.Render("mindstone · " + m.plant))
	b.WriteString("  ")
	b.WriteString(viz.Status(status))
	b.WriteString("\n\n")

	b.WriteString(viz.Panel.Render(m.scene.Draw(m.plant, m.last.Snapshot)))
	b.WriteString("\n")

	label := func(k, v string) string {
		return viz.MetricLabel.Render(k+" ") + viz.MetricValue.Render(v)
	}
	b.WriteString(label("tick", fmt.Sprintf("%d", m.last.Tick)))
	b.WriteString("  ")
	b.WriteString(label("t", fmt.Sprintf("%.2fs", m.last.Snapshot.Time())))
	for _, ch := range m.last.Output.Channels() {
		b.WriteString("  ")
		b.WriteString(label(ch, fmt.Sprintf("%+.3f", m.last.Output.Value(ch))))
	}
	b.WriteString("\n")

	if len(m.last.Params) > 0 {
		for _, k := range m.last.Params.Names() {
			b.WriteString(label(k, fmt.Sprintf("%.4g", m.last.Params[k])))
			b.WriteString("  ")
		}
		b.WriteString("\n")
	}

	b.WriteString(viz.MetricLabel.Render("error "))
	b.WriteString(viz.Sparkline(m.errs, min(m.width-8, 60)))
	b.WriteString("\n")

	if len(m.faults) > 0 {
		parts := make([]string, 0, len(m.faults))
		for k, n := range m.faults {
			parts = append(parts, fmt.Sprintf("%s×%d", k, n))
		}
		sort.Strings(parts)
		b.WriteString(viz.StatusFaulted.Render(strings.Join(parts, "  ")))
		b.WriteString("\n")
	}
	if m.done != nil && m.done.Fault != nil {
		b.WriteString(viz.StatusFaulted.Render(m.done.Fault.Error()))
		b.WriteString("\n")
	}
	if m.note != "" {
		b.WriteString(viz.Subtle.Render(m.note))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.done != nil {
		b.WriteString(viz.KeyHint.Render("q quit"))
	} else {
		b.WriteString(viz.KeyHint.Render("p pause/resume · s stop · q quit"))
	}
	return b.String()
}
