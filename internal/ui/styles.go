package ui

import "github.com/charmbracelet/lipgloss"

// Color palette.
var (
	ColorSuccess   = lipgloss.Color("#00D26A") // green: connected, success
	ColorWarning   = lipgloss.Color("#FFB800") // yellow: pending, warning
	ColorError     = lipgloss.Color("#FF4444") // red: failed, disconnected
	ColorInfo      = lipgloss.Color("#4EA8DE") // blue: progress, notes
	ColorAddress   = lipgloss.Color("#00B4D8") // cyan: addresses, hashes
	ColorValue     = lipgloss.Color("#FFFFFF") // white bold: ETH values
	ColorMeta      = lipgloss.Color("#555555") // dim gray: timestamps, metadata
	ColorBorder    = lipgloss.Color("#1E3A5F") // dark blue: UI chrome
	ColorChain     = lipgloss.Color("#9B5DE5") // purple: chain names, methods
	ColorHighlight = lipgloss.Color("#F15BB5") // pink: selected rows
)

// Base styles.
var (
	StyleSuccess = lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true)
	StyleWarning = lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	StyleError   = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	StyleInfo    = lipgloss.NewStyle().Foreground(ColorInfo)
	StyleAddress = lipgloss.NewStyle().Foreground(ColorAddress)
	StyleValue   = lipgloss.NewStyle().Foreground(ColorValue).Bold(true)
	StyleMeta    = lipgloss.NewStyle().Foreground(ColorMeta)
	StyleChain   = lipgloss.NewStyle().Foreground(ColorChain).Bold(true)

	StyleBorder = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	StyleHeader = lipgloss.NewStyle().
			Foreground(ColorHighlight).
			Bold(true).
			Underline(true)

	StyleSelected = lipgloss.NewStyle().
			Background(ColorHighlight).
			Foreground(lipgloss.Color("#000000")).
			Bold(true)

	StyleTitle = lipgloss.NewStyle().
			Foreground(ColorChain).
			Bold(true).
			MarginBottom(1)

	StyleDim = lipgloss.NewStyle().Foreground(ColorMeta)
)

// Banner returns the w3scan ASCII banner.
func Banner() string {
	art := `
  ██╗    ██╗██████╗ ███████╗ ██████╗ █████╗ ███╗   ██╗
  ██║    ██║╚════██╗██╔════╝██╔════╝██╔══██╗████╗  ██║
  ██║ █╗ ██║ █████╔╝███████╗██║     ███████║██╔██╗ ██║
  ██║███╗██║ ╚═══██╗╚════██║██║     ██╔══██║██║╚██╗██║
  ╚███╔███╔╝██████╔╝███████║╚██████╗██║  ██║██║ ╚████║
   ╚══╝╚══╝ ╚═════╝ ╚══════╝ ╚═════╝╚═╝  ╚═╝╚═╝  ╚═══╝`

	tagline := StyleMeta.Render("     A terminal explorer for any EVM JSON-RPC node")
	return StyleChain.Render(art) + "\n" + tagline + "\n"
}

// Success formats a success message.
func Success(msg string) string { return StyleSuccess.Render("✓ " + msg) }

// Warn formats a warning message.
func Warn(msg string) string { return StyleWarning.Render("⚠ " + msg) }

// Err formats an error message.
func Err(msg string) string { return StyleError.Render("✗ " + msg) }

// Info formats an informational message.
func Info(msg string) string { return StyleInfo.Render("ℹ " + msg) }

// Hint formats a suggestion for the next command to run.
func Hint(msg string) string { return StyleMeta.Render("→ " + msg) }

// Addr formats an address.
func Addr(a string) string { return StyleAddress.Render(a) }

// Val formats a value.
func Val(v string) string { return StyleValue.Render(v) }

// Meta formats metadata text.
func Meta(m string) string { return StyleMeta.Render(m) }

// ChainName formats a chain name.
func ChainName(c string) string { return StyleChain.Render(c) }

// Method formats a decoded method or event name.
func Method(m string) string { return StyleChain.Render(m) }

// Status renders a receipt status: ✓ success, ✗ failed, … pending.
func Status(pending, success bool) string {
	switch {
	case pending:
		return StyleWarning.Render("… pending")
	case success:
		return StyleSuccess.Render("✓ success")
	default:
		return StyleError.Render("✗ failed")
	}
}

// TruncateAddr shortens an address for display: 0x1234…5678.
func TruncateAddr(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:6] + "…" + addr[len(addr)-4:]
}

// WithAlias renders an address followed by its ENS name when there is one.
func WithAlias(addr, alias string) string {
	if alias == "" {
		return Addr(addr)
	}
	return Addr(addr) + " " + StyleMeta.Render("("+alias+")")
}
