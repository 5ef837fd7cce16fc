package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Mohsinsiddi/w3scan/internal/chain"
)

// TxList is an interactive view over a transaction feed. Enter toggles the
// detail pane of the selected transaction.
type TxList struct {
	title    string
	txs      []*chain.Transaction
	method   MethodFunc
	explorer string // block explorer base URL, empty on local chains
	now      time.Time

	cursor int
	detail bool
	flash  string
}

// NewTxList builds the list. explorer may be empty.
func NewTxList(title string, txs []*chain.Transaction, method MethodFunc, explorer string, now time.Time) TxList {
	return TxList{
		title:    title,
		txs:      txs,
		method:   method,
		explorer: strings.TrimSuffix(explorer, "/"),
		now:      now,
	}
}

// Selected returns the transaction under the cursor, nil when the list is empty.
func (m TxList) Selected() *chain.Transaction {
	if m.cursor < 0 || m.cursor >= len(m.txs) {
		return nil
	}
	return m.txs[m.cursor]
}

// ExplorerURL links tx on the configured block explorer.
func (m TxList) ExplorerURL(tx *chain.Transaction) string {
	if m.explorer == "" || tx == nil {
		return ""
	}
	return m.explorer + "/tx/" + tx.Hash
}

func (m TxList) Init() tea.Cmd { return nil }

func (m TxList) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	m.flash = ""
	switch key.String() {
	case "q", "esc", "ctrl+c":
		if m.detail && key.String() == "esc" {
			m.detail = false
			return m, nil
		}
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.txs)-1 {
			m.cursor++
		}
	case "g", "home":
		m.cursor = 0
	case "G", "end":
		if len(m.txs) > 0 {
			m.cursor = len(m.txs) - 1
		}
	case "enter":
		m.detail = !m.detail
	case "o":
		url := m.ExplorerURL(m.Selected())
		if url == "" {
			m.flash = "No explorer for this network"
			break
		}
		if err := openBrowser(url); err != nil {
			m.flash = "Open failed: " + err.Error()
			break
		}
		m.flash = "Opening " + url
	case "c":
		tx := m.Selected()
		if tx == nil {
			break
		}
		if err := copyToClipboard(tx.Hash); err != nil {
			m.flash = "Copy failed: " + err.Error()
			break
		}
		m.flash = "Copied " + chain.ShortHash(tx.Hash)
	}
	return m, nil
}

func (m TxList) View() string {
	var sb strings.Builder
	sb.WriteString(m.title)
	sb.WriteString("\n\n")

	if len(m.txs) == 0 {
		sb.WriteString(Meta("No transactions."))
		sb.WriteString("\n")
		return sb.String()
	}

	table := TxTable(m.txs, m.method, m.now)
	table.SelIdx = m.cursor
	sb.WriteString(table.Render())

	if m.detail {
		sb.WriteString("\n")
		sb.WriteString(txDetail(m.Selected(), methodOf(m.Selected(), m.method), m.now))
	}

	sb.WriteString("\n")
	if m.flash != "" {
		sb.WriteString(StyleSuccess.Render("  ✓ " + m.flash))
	} else {
		sb.WriteString(txControls(m.detail))
	}
	sb.WriteString("\n")
	return sb.String()
}

func txDetail(tx *chain.Transaction, method string, now time.Time) string {
	to := tx.To
	if to == "" {
		to = "(contract creation)"
	}
	block := strconv.FormatUint(tx.BlockNum, 10)
	if tx.Pending {
		block = "pending"
	}
	lines := [][2]string{
		{"Hash", tx.Hash},
		{"Block", fmt.Sprintf("%s  (index %d)", block, tx.Index)},
		{"Age", chain.Ago(tx.Timestamp, now)},
		{"From", tx.From},
		{"To", to},
		{"Method", method},
		{"Value", chain.FormatEth(tx.Value, 8) + " ETH"},
		{"Nonce", strconv.FormatUint(tx.Nonce, 10)},
		{"Gas limit", strconv.FormatUint(tx.Gas, 10)},
	}
	if tx.GasPrice != nil {
		lines = append(lines, [2]string{"Gas price", fmt.Sprintf("%.2f Gwei", chain.WeiToGwei(tx.GasPrice))})
	}

	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString("  ")
		sb.WriteString(StyleMeta.Render(fmt.Sprintf("%-10s", l[0])))
		sb.WriteString(" ")
		sb.WriteString(l[1])
		sb.WriteString("\n")
	}
	return sb.String()
}

func txControls(detail bool) string {
	sep := StyleMeta.Render("   ")
	pane := " details"
	if detail {
		pane = " hide details"
	}
	parts := []string{
		StyleMeta.Render("[ ↑↓ ]") + StyleMeta.Render(" navigate"),
		StyleInfo.Render("[ enter ]") + StyleMeta.Render(pane),
		StyleInfo.Render("[ o ]") + StyleMeta.Render(" open in explorer"),
		StyleWarning.Render("[ c ]") + StyleMeta.Render(" copy hash"),
		StyleMeta.Render("[ q ]") + StyleMeta.Render(" quit"),
	}
	return strings.Join(parts, sep)
}

// RunTxList shows the list on the alt screen until the user quits.
func RunTxList(m TxList) error {
	p := tea.NewProgram(m, tea.WithInput(os.Stdin), tea.WithOutput(os.Stdout), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

func copyToClipboard(text string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("pbcopy")
	case "windows":
		cmd = exec.Command("clip")
	default:
		if _, err := exec.LookPath("wl-copy"); err == nil {
			cmd = exec.Command("wl-copy")
		} else {
			cmd = exec.Command("xclip", "-selection", "clipboard")
		}
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	_, _ = io.WriteString(stdin, text)
	stdin.Close()
	return cmd.Wait()
}
