package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
	"github.com/Mohsinsiddi/w3scan/internal/connection"
)

// Snapshot is what the dashboard shows below the status bar.
type Snapshot struct {
	Head   uint64
	Blocks []*chain.Block
	Txs    []*chain.Transaction
}

// Loader builds a snapshot for head.
type Loader func(ctx context.Context, head uint64) (Snapshot, error)

// StateMsg delivers a connection state to the dashboard.
type StateMsg connection.State

type snapshotMsg struct {
	head uint64
	snap Snapshot
	err  error
}

type dashTickMsg struct{}

// DashboardModel is the Bubble Tea model for the live explorer home screen.
// It reloads the snapshot whenever the connection reports a new head; heads
// that arrive while a load is running collapse into one follow-up load.
type DashboardModel struct {
	ctx     context.Context
	network string
	states  <-chan connection.State
	load    Loader
	method  MethodFunc
	now     func() time.Time

	state    connection.State
	snap     Snapshot
	loaded   bool
	loading  bool
	queued   uint64 // head to load once the running load finishes, 0 for none
	err      error
	frame    int
	Quitting bool
}

// NewDashboard returns a dashboard fed by states and filled by load.
func NewDashboard(ctx context.Context, network string, states <-chan connection.State, load Loader, method MethodFunc) DashboardModel {
	return DashboardModel{
		ctx:     ctx,
		network: network,
		states:  states,
		load:    load,
		method:  method,
		now:     time.Now,
	}
}

// RunDashboard runs m full-screen until the user quits or ctx ends.
func RunDashboard(ctx context.Context, m DashboardModel) error {
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func waitForState(ch <-chan connection.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return StateMsg(s)
	}
}

func dashTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg { return dashTickMsg{} })
}

func (m DashboardModel) loadCmd(head uint64) tea.Cmd {
	return func() tea.Msg {
		snap, err := m.load(m.ctx, head)
		return snapshotMsg{head: head, snap: snap, err: err}
	}
}

func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(waitForState(m.states), dashTick())
}

func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Quitting = true
			return m, tea.Quit
		case "r":
			if m.state.Connected() {
				return m.request(m.state.BlockNumber)
			}
		}

	case StateMsg:
		m.state = connection.State(msg)
		next := waitForState(m.states)
		if m.state.Connected() && (!m.loaded || m.state.BlockNumber != m.snap.Head) {
			var cmd tea.Cmd
			m, cmd = m.requestModel(m.state.BlockNumber)
			return m, tea.Batch(next, cmd)
		}
		return m, next

	case snapshotMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.snap, m.loaded, m.err = msg.snap, true, nil
		}
		if q := m.queued; q != 0 {
			m.queued = 0
			if q != m.snap.Head || msg.err != nil {
				return m.request(q)
			}
		}

	case dashTickMsg:
		m.frame = (m.frame + 1) % len(spinnerFrames)
		return m, dashTick()
	}

	return m, nil
}

func (m DashboardModel) request(head uint64) (tea.Model, tea.Cmd) {
	return m.requestModel(head)
}

func (m DashboardModel) requestModel(head uint64) (DashboardModel, tea.Cmd) {
	if m.loading {
		m.queued = head
		return m, nil
	}
	m.loading = true
	return m, m.loadCmd(head)
}

func (m DashboardModel) View() string {
	if m.Quitting {
		return ""
	}
	now := m.now()

	var sb strings.Builder
	sb.WriteString(StyleTitle.Render("w3scan") + "\n")
	sb.WriteString(StatusBar(m.state, m.network))
	if m.loading {
		sb.WriteString("  " + StyleChain.Render(spinnerFrames[m.frame]))
	}
	sb.WriteString("\n\n")

	if m.err != nil {
		sb.WriteString(Err(m.err.Error()) + "\n\n")
	}

	if !m.loaded {
		sb.WriteString(StyleMeta.Render("Waiting for the node…") + "\n")
	} else {
		sb.WriteString(StyleHeader.Render(fmt.Sprintf("Latest %d blocks", len(m.snap.Blocks))) + "\n")
		sb.WriteString(BlockTable(m.snap.Blocks, now).Render())
		sb.WriteString("\n")
		sb.WriteString(StyleHeader.Render(fmt.Sprintf("Latest %d transactions", len(m.snap.Txs))) + "\n")
		if len(m.snap.Txs) == 0 {
			sb.WriteString(StyleMeta.Render("No transactions in the scanned blocks.") + "\n")
		} else {
			sb.WriteString(TxTable(m.snap.Txs, m.method, now).Render())
		}
	}

	sb.WriteString("\n" + StyleMeta.Render("[ r ] refresh   [ q ] quit") + "\n")
	return sb.String()
}
