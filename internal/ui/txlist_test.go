package ui

import (
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
)

func newTxList(n int, explorer string) TxList {
	txs := make([]*chain.Transaction, n)
	for i := range txs {
		txs[i] = testTx(fmt.Sprintf("0x%064x", i+1), uint64(100-i))
	}
	return NewTxList("Latest Transactions", txs, nil, explorer, fixedNow)
}

func press(m TxList, key string) TxList {
	var msg tea.KeyMsg
	switch key {
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next.(TxList)
}

func TestTxListCursorStaysInBounds(t *testing.T) {
	m := newTxList(3, "")

	m = press(m, "up")
	assert.Equal(t, 0, m.cursor)
	m = press(m, "down")
	m = press(m, "j")
	m = press(m, "j")
	assert.Equal(t, 2, m.cursor)
	m = press(m, "k")
	assert.Equal(t, 1, m.cursor)

	m = press(m, "G")
	assert.Equal(t, 2, m.cursor)
	m = press(m, "g")
	assert.Equal(t, 0, m.cursor)
	assert.Equal(t, fmt.Sprintf("0x%064x", 1), m.Selected().Hash)
}

func TestTxListExplorerURL(t *testing.T) {
	m := newTxList(1, "https://etherscan.io/")
	assert.Equal(t, "https://etherscan.io/tx/"+m.Selected().Hash, m.ExplorerURL(m.Selected()))

	local := newTxList(1, "")
	assert.Empty(t, local.ExplorerURL(local.Selected()))
}

func TestTxListOpenWithoutExplorer(t *testing.T) {
	m := press(newTxList(1, ""), "o")
	assert.Equal(t, "No explorer for this network", m.flash)

	// Any key clears the flash.
	m = press(m, "down")
	assert.Empty(t, m.flash)
}

func TestTxListDetailPane(t *testing.T) {
	m := press(newTxList(2, ""), "down")
	m = press(m, "enter")
	require.True(t, m.detail)

	view := m.View()
	assert.Contains(t, view, fmt.Sprintf("0x%064x", 2))
	assert.Contains(t, view, "1.5 ETH")
	assert.Contains(t, view, "hide details")

	// esc closes the pane before it quits.
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, cmd)
	assert.False(t, next.(TxList).detail)
}

func TestTxListQuit(t *testing.T) {
	_, cmd := newTxList(1, "").Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestTxListEmpty(t *testing.T) {
	m := press(newTxList(0, ""), "c")
	assert.Nil(t, m.Selected())
	assert.Empty(t, m.flash)
	assert.Contains(t, m.View(), "No transactions.")
}

func TestTxListViewShowsControls(t *testing.T) {
	view := newTxList(1, "").View()
	assert.Contains(t, view, "Latest Transactions")
	assert.Contains(t, view, "open in explorer")
	assert.Contains(t, view, "copy hash")
}
