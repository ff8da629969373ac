package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	enginehost "github.com/wippyai/engine-host"
	"github.com/wippyai/engine-host/host"
	"github.com/wippyai/engine-host/loop"
	"github.com/wippyai/engine-host/platform"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type modelState int

const (
	stateEditArgs modelState = iota
	stateRunning
	stateShowResult
)

// interactiveModel drives repeated program runs. Each run constructs a
// fresh lifecycle manager on the shared platform.
type interactiveModel struct {
	programFile string
	platform    *platform.Platform

	argsInput textinput.Model
	state     modelState

	runs     int
	exitCode enginehost.ExitCode
	stdout   string
	stderr   string
	err      error
}

type runDoneMsg struct {
	code   enginehost.ExitCode
	stdout string
	stderr string
	err    error
}

func newInteractiveModel(programFile string, argv []string) *interactiveModel {
	ti := textinput.New()
	ti.Prompt = "args: "
	ti.Placeholder = "comma-separated program arguments"
	ti.Width = 48
	ti.SetValue(strings.Join(argv, ","))
	ti.Focus()

	return &interactiveModel{
		programFile: programFile,
		platform:    platform.New(0),
		argsInput:   ti,
		state:       stateEditArgs,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) startRun() tea.Cmd {
	argv := splitArgs(m.argsInput.Value())
	programFile := m.programFile
	pf := m.platform

	return func() tea.Msg {
		ctx := context.Background()

		var stdout, stderr bytes.Buffer
		mgr := host.NewOwned(ctx, nil, loop.New(), pf,
			append([]string{programFile}, argv...), nil, host.Options{
				Stdout: &stdout,
				Stderr: &stderr,
			})
		defer mgr.Close(ctx)

		code := mgr.Run(ctx)
		return runDoneMsg{
			code:   code,
			stdout: stdout.String(),
			stderr: stderr.String(),
		}
	}
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.platform.Shutdown()
			return m, tea.Quit

		case "q":
			if m.state != stateEditArgs {
				m.platform.Shutdown()
				return m, tea.Quit
			}

		case "enter":
			switch m.state {
			case stateEditArgs:
				m.state = stateRunning
				return m, m.startRun()
			case stateShowResult:
				m.state = stateEditArgs
				m.argsInput.Focus()
				return m, textinput.Blink
			}
		}

	case runDoneMsg:
		m.runs++
		m.exitCode = msg.code
		m.stdout = msg.stdout
		m.stderr = msg.stderr
		m.err = msg.err
		m.state = stateShowResult
		return m, nil
	}

	if m.state == stateEditArgs {
		var cmd tea.Cmd
		m.argsInput, cmd = m.argsInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Engine Host"))
	b.WriteString(" ")
	b.WriteString(m.programFile)
	b.WriteString("\n\n")

	switch m.state {
	case stateEditArgs:
		b.WriteString(m.argsInput.View())
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter run • ctrl+c quit"))

	case stateRunning:
		b.WriteString("Running...\n")

	case stateShowResult:
		b.WriteString(labelStyle.Render(fmt.Sprintf("Run #%d", m.runs)))
		b.WriteString("\n\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else if m.exitCode == enginehost.ExitNoFailure {
			b.WriteString(okStyle.Render("exit: " + m.exitCode.String()))
		} else {
			b.WriteString(errorStyle.Render("exit: " + m.exitCode.String()))
		}
		b.WriteString("\n")
		if m.stdout != "" {
			b.WriteString("\n--- stdout ---\n")
			b.WriteString(m.stdout)
		}
		if m.stderr != "" {
			b.WriteString("\n--- stderr ---\n")
			b.WriteString(m.stderr)
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("enter run again • q quit"))
	}

	return b.String()
}

func runInteractive(programFile string, argv []string) error {
	if programFile == "" {
		return fmt.Errorf("interactive mode needs -program")
	}
	p := tea.NewProgram(newInteractiveModel(programFile, argv), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
