// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package tailui is the interactive severity-colored viewer behind
// logs tail. Entries stream in from the platform log buffer and
// render into a scrolling viewport until q or ctrl+c.
package tailui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/staranto/runctlgo/internal/logbuf"
)

var severityStyles = map[logbuf.Severity]lipgloss.Style{
	logbuf.Debug:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	logbuf.Info:     lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	logbuf.Notice:   lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
	logbuf.Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	logbuf.Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	logbuf.Critical: lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
}

var footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

type entriesMsg []logbuf.Entry

type tailErrMsg struct{ err error }

type model struct {
	viewport viewport.Model
	entries  <-chan []logbuf.Entry
	errs     <-chan error
	lines    []string
	ready    bool
	err      error
}

// FormatEntry renders one entry the way the viewer shows it.
func FormatEntry(e logbuf.Entry) string {
	resource := e.Service
	if e.Revision != "" {
		resource = e.Revision
	}
	if resource == "" {
		resource = "platform"
	}

	line := fmt.Sprintf("%s %-8s %-24s %s",
		e.Time.Format(time.RFC3339), e.Severity, resource, e.Message)

	if style, ok := severityStyles[e.Severity]; ok {
		return style.Render(line)
	}
	return line
}

func (m model) Init() tea.Cmd {
	return m.wait()
}

func (m model) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case entries, ok := <-m.entries:
			if !ok {
				return tea.Quit()
			}
			return entriesMsg(entries)
		case err := <-m.errs:
			return tailErrMsg{err}
		}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-1)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 1
		}
		m.viewport.SetContent(strings.Join(m.lines, "\n"))
		m.viewport.GotoBottom()
		return m, nil

	case entriesMsg:
		for _, e := range msg {
			m.lines = append(m.lines, FormatEntry(e))
		}
		if m.ready {
			m.viewport.SetContent(strings.Join(m.lines, "\n"))
			m.viewport.GotoBottom()
		}
		return m, m.wait()

	case tailErrMsg:
		m.err = msg.err
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m model) View() string {
	if !m.ready {
		return "tailing..."
	}
	return m.viewport.View() + "\n" + footerStyle.Render("q to quit")
}

// Run tails the buffer into an interactive viewer and blocks until
// the user quits or the tail fails.
func Run(ctx context.Context, buf *logbuf.Buffer, opts logbuf.ReadOptions, interval time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	entries := make(chan []logbuf.Entry, 8)
	errs := make(chan error, 1)

	go func() {
		defer close(entries)
		err := buf.Tail(ctx, opts, interval, func(batch []logbuf.Entry) error {
			select {
			case entries <- batch:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if err != nil && ctx.Err() == nil {
			errs <- err
		}
	}()

	m := model{entries: entries, errs: errs}
	final, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
	if err != nil {
		return err
	}

	if fm, ok := final.(model); ok && fm.err != nil {
		return fm.err
	}
	return nil
}
