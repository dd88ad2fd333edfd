package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"vpnrotator/internal/catalog"
	"vpnrotator/internal/domain"
	"vpnrotator/internal/rotation"
)

const commandTimeout = 5 * time.Second

// Controller is the subset of rotation.Controller the dashboard drives.
type Controller interface {
	Snapshot() rotation.Snapshot
	Catalog() *catalog.Catalog
	Subscribe() (<-chan rotation.Snapshot, func())
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	SelectProxy(ctx context.Context, id string) error
	RotateNow(ctx context.Context) error
	ToggleAutoRotate(ctx context.Context) error
}

type snapshotMsg rotation.Snapshot

type updatesClosedMsg struct{}

type commandErrMsg struct {
	action string
	err    error
}

type model struct {
	ctrl    Controller
	updates <-chan rotation.Snapshot
	proxies []domain.ProxyDescriptor
	snap    rotation.Snapshot
	cursor  int
	spinner spinner.Model
	lastErr string
	height  int
}

func newModel(ctrl Controller, updates <-chan rotation.Snapshot) model {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = analyzingStyle

	m := model{
		ctrl:    ctrl,
		updates: updates,
		proxies: ctrl.Catalog().All(),
		snap:    ctrl.Snapshot(),
		spinner: s,
	}
	m.cursor = m.indexOf(m.snap.SelectedID)
	return m
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForSnapshot(m.updates), m.spinner.Tick)
}

func waitForSnapshot(updates <-chan rotation.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return updatesClosedMsg{}
		}
		return snapshotMsg(snap)
	}
}

func (m model) dispatch(action string, command func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		if err := command(ctx); err != nil {
			return commandErrMsg{action: action, err: err}
		}
		return nil
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		m.snap = rotation.Snapshot(msg)
		return m, waitForSnapshot(m.updates)

	case updatesClosedMsg:
		return m, tea.Quit

	case commandErrMsg:
		m.lastErr = msg.action + ": " + msg.err.Error()
		return m, nil

	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		m.lastErr = ""
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "c":
			return m, m.dispatch("connect", m.ctrl.Connect)
		case "d":
			return m, m.dispatch("disconnect", m.ctrl.Disconnect)
		case "r":
			return m, m.dispatch("rotate", m.ctrl.RotateNow)
		case "a":
			return m, m.dispatch("auto-rotate", m.ctrl.ToggleAutoRotate)
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "j":
			if m.cursor < len(m.proxies)-1 {
				m.cursor++
			}
			return m, nil
		case "enter":
			if len(m.proxies) == 0 {
				return m, nil
			}
			id := m.proxies[m.cursor].ID
			return m, m.dispatch("select", func(ctx context.Context) error {
				return m.ctrl.SelectProxy(ctx, id)
			})
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)
	return m, cmd
}

func (m model) indexOf(id string) int {
	for i, p := range m.proxies {
		if p.ID == id {
			return i
		}
	}
	return 0
}
