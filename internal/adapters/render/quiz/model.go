package quiz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bnema/catq/internal/domain"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

var ErrUnexpectedModel = errors.New("unexpected final bubbletea model type")

// Controller is the session surface the presenter drives.
type Controller interface {
	Snapshot() domain.Snapshot
	Watch(fn func(domain.Snapshot)) (cancel func())
	SelectOption(ctx context.Context, label string) error
	Advance(ctx context.Context) error
	Restart(ctx context.Context) error
	Finish(ctx context.Context) error
}

type snapshotMsg struct {
	snapshot domain.Snapshot
}

type commandDoneMsg struct {
	err error
}

type model struct {
	ctx        context.Context
	controller Controller
	snapshot   domain.Snapshot
	itemID     string
	cursor     int
	notice     string
	spinner    spinner.Model
	keys       keyMap
	styles     styles
}

func newModel(ctx context.Context, controller Controller) model {
	m := model{
		ctx:        ctx,
		controller: controller,
		keys:       newKeyMap(),
		styles:     newStyles(),
	}
	m.spinner = spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(m.styles.spinner),
	)
	return m.withSnapshot(controller.Snapshot())
}

func (m model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case snapshotMsg:
		return m.withSnapshot(msg.snapshot), nil
	case commandDoneMsg:
		m.notice = noticeFor(msg.err)
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	default:
		return m, nil
	}
}

func (m model) View() string {
	return renderView(m.viewState(), m.styles)
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	item := m.snapshot.CurrentItem
	awaiting := m.snapshot.Status == domain.StatusAwaitingAnswer && item != nil

	// Option labels win over other bindings so that any label is typeable.
	if awaiting {
		for i, option := range item.Options {
			if len([]rune(option.Label)) == 1 && strings.EqualFold(msg.String(), option.Label) {
				m.cursor = i
				return m, m.run(func(ctx context.Context) error {
					return m.controller.SelectOption(ctx, option.Label)
				})
			}
		}
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Up):
		if awaiting && m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if awaiting && m.cursor < len(item.Options)-1 {
			m.cursor++
		}
		return m, nil
	case key.Matches(msg, m.keys.Choose):
		if !awaiting || len(item.Options) == 0 {
			return m, nil
		}
		label := item.Options[m.cursor].Label
		return m, m.run(func(ctx context.Context) error {
			return m.controller.SelectOption(ctx, label)
		})
	case key.Matches(msg, m.keys.Advance):
		m.notice = ""
		if m.snapshot.Status == domain.StatusFinished {
			return m, m.run(m.controller.Finish)
		}
		return m, m.run(m.controller.Advance)
	case key.Matches(msg, m.keys.Restart):
		m.notice = ""
		return m, m.run(m.controller.Restart)
	case key.Matches(msg, m.keys.Finish):
		m.notice = ""
		return m, m.run(m.controller.Finish)
	default:
		return m, nil
	}
}

func (m model) run(command func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return commandDoneMsg{err: command(ctx)}
	}
}

func (m model) withSnapshot(snapshot domain.Snapshot) model {
	m.snapshot = snapshot

	itemID := ""
	if snapshot.CurrentItem != nil {
		itemID = snapshot.CurrentItem.ID
	}
	if itemID != m.itemID {
		m.cursor = 0
		m.notice = ""
	}
	m.itemID = itemID

	if item := snapshot.CurrentItem; item != nil && snapshot.SelectedOption != "" {
		for i, option := range item.Options {
			if option.Label == snapshot.SelectedOption {
				m.cursor = i
			}
		}
	}

	return m
}

func (m model) viewState() viewState {
	return viewState{
		Snapshot: m.snapshot,
		Cursor:   m.cursor,
		Notice:   m.notice,
		Spinner:  m.spinner.View(),
		Help:     m.helpLine(),
	}
}

func (m model) helpLine() string {
	var parts []string
	switch m.snapshot.Status {
	case domain.StatusAwaitingAnswer:
		parts = m.keys.help(m.keys.Up, m.keys.Down, m.keys.Choose, m.keys.Advance, m.keys.Restart, m.keys.Quit)
	case domain.StatusFinished:
		parts = m.keys.help(m.keys.Finish, m.keys.Quit)
	case domain.StatusIdle:
		parts = m.keys.help(m.keys.Quit)
	default:
		if m.snapshot.Err != nil || m.snapshot.NoItem {
			parts = m.keys.help(m.keys.Advance, m.keys.Restart, m.keys.Quit)
		} else {
			parts = m.keys.help(m.keys.Restart, m.keys.Quit)
		}
	}
	return strings.Join(parts, " • ")
}

func noticeFor(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrNoOptionSelected):
		return "Select an option before continuing."
	case errors.Is(err, domain.ErrBusy):
		return "Please wait for the current request."
	case errors.Is(err, domain.ErrNotFinished):
		return "The test is still in progress."
	case errors.Is(err, domain.ErrNoSession):
		return "Nobody is logged in."
	case errors.Is(err, context.Canceled):
		return ""
	default:
		return err.Error()
	}
}

type Options struct {
	Input  io.Reader
	Output io.Writer
	// AltScreen renders in the terminal's alternate buffer.
	AltScreen bool
}

// Run shows the session until the test-taker quits or ctx ends.
func Run(ctx context.Context, controller Controller, opts Options) error {
	programOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.Input != nil {
		programOpts = append(programOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		programOpts = append(programOpts, tea.WithOutput(opts.Output))
	}
	if opts.AltScreen {
		programOpts = append(programOpts, tea.WithAltScreen())
	}

	p := tea.NewProgram(newModel(ctx, controller), programOpts...)
	cancel := controller.Watch(func(snapshot domain.Snapshot) {
		p.Send(snapshotMsg{snapshot: snapshot})
	})
	defer cancel()

	finalModel, err := p.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("run quiz: %w", err)
	}
	if _, ok := finalModel.(model); !ok {
		return ErrUnexpectedModel
	}

	return nil
}
