package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"vpnrotator/internal/api/dto"
	"vpnrotator/internal/domain"
	"vpnrotator/internal/rotation"
)

const (
	defaultListRows = 12
	panelWidth      = 46
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	panelStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1).Width(panelWidth)
	analyzingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	cursorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	activeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	stateColors = map[domain.ConnectionState]lipgloss.Color{
		domain.Disconnected: lipgloss.Color("196"),
		domain.Connecting:   lipgloss.Color("220"),
		domain.Connected:    lipgloss.Color("42"),
	}

	riskColors = map[domain.RiskLevel]lipgloss.Color{
		domain.RiskLow:    lipgloss.Color("42"),
		domain.RiskMedium: lipgloss.Color("220"),
		domain.RiskHigh:   lipgloss.Color("196"),
	}
)

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("vpnrotator"))
	b.WriteString("  ")
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(stateColors[m.snap.Connection]).Render(string(m.snap.Connection)))
	b.WriteString("\n\n")

	panels := lipgloss.JoinHorizontal(lipgloss.Top, m.connectionPanel(), m.reportPanel())
	b.WriteString(panels)
	b.WriteString("\n\n")

	b.WriteString(m.proxyList())
	b.WriteString("\n")

	if m.lastErr != "" {
		b.WriteString(errorStyle.Render(m.lastErr))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("c connect • d disconnect • r rotate • a auto-rotate • enter select • ↑/↓ move • q quit"))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(dto.SimulationNote))
	b.WriteString("\n")

	return b.String()
}

func (m model) connectionPanel() string {
	var lines []string

	auto := "off"
	if m.snap.AutoRotate {
		auto = "on"
	}
	lines = append(lines,
		labelStyle.Render("Next rotation ")+rotation.FormatCountdown(m.snap.Timer),
		labelStyle.Render("Auto-rotate   ")+auto,
	)

	if p := m.snap.Proxy; p != nil {
		lines = append(lines,
			"",
			labelStyle.Render("IP            ")+p.IP,
			labelStyle.Render("Port          ")+fmt.Sprint(p.Port),
			labelStyle.Render("Protocol      ")+string(p.Protocol),
			labelStyle.Render("Encryption    ")+string(p.Encryption),
			labelStyle.Render("Latency       ")+fmt.Sprintf("%dms", p.Latency),
		)
		if m.snap.Connection == domain.Connected {
			lines = append(lines, "", activeStyle.Render("Tunneling via "+p.Location()))
		}
	} else {
		lines = append(lines, "", labelStyle.Render("No proxy selected"))
	}

	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m model) reportPanel() string {
	var body string
	switch {
	case m.snap.Analyzing:
		body = m.spinner.View() + " analyzing connection security..."
	case m.snap.Report != nil:
		r := m.snap.Report
		risk := lipgloss.NewStyle().Bold(true).Foreground(riskColors[r.RiskLevel]).Render(string(r.RiskLevel) + " risk")
		body = strings.Join([]string{risk, "", r.Summary, "", labelStyle.Render(r.EncryptionAnalysis)}, "\n")
	default:
		body = labelStyle.Render("Connect to receive a security report.")
	}

	return panelStyle.Render(titleStyle.Render("Security report") + "\n\n" + body)
}

func (m model) proxyList() string {
	rows := defaultListRows
	if m.height > 0 {
		// header, panels and footer take roughly 20 lines
		if available := m.height - 20; available > 3 {
			rows = available
		} else {
			rows = 3
		}
	}

	start, end := listWindow(len(m.proxies), m.cursor, rows)

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Proxies (%d)", len(m.proxies))))
	b.WriteString("\n")
	for i := start; i < end; i++ {
		p := m.proxies[i]
		marker := "  "
		if i == m.cursor {
			marker = "> "
		}
		line := fmt.Sprintf("%s%-11s %-22s %-21s %-6s %4dms", marker, p.ID, p.Location(), p.Address(), p.Protocol, p.Latency)
		switch {
		case p.ID == m.snap.SelectedID:
			line = activeStyle.Render(line + "  ●")
		case i == m.cursor:
			line = cursorStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// listWindow returns the [start, end) slice of a list of n rows that keeps
// cursor visible in a window of size rows.
func listWindow(n, cursor, rows int) (int, int) {
	if n <= rows {
		return 0, n
	}
	start := cursor - rows/2
	if start < 0 {
		start = 0
	}
	if start+rows > n {
		start = n - rows
	}
	return start, start + rows
}
