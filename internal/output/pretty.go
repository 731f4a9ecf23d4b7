// Package output renders query results for the command line.
package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/woozymasta/craftping/internal/models"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	successStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failureStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

// RenderPretty renders a single result as a labelled block.
func RenderPretty(result models.QueryResult) string {
	lines := []string{titleStyle.Render(address(result)) + " " + statusLabel(result), ""}

	if !result.Online {
		lines = append(lines, field("error", string(result.ErrorKind)))
		lines = append(lines, field("message", result.ErrorMessage))
		return strings.Join(lines, "\n")
	}

	lines = append(lines, field("type", string(result.Type)))
	lines = append(lines, field("version", fmt.Sprintf("%s (protocol %d)", result.Version, result.Protocol)))
	lines = append(lines, field("players", fmt.Sprintf("%d/%d", result.PlayersOnline, result.PlayersMax)))
	if len(result.PlayersSample) > 0 {
		lines = append(lines, field("sample", strings.Join(result.PlayersSample, ", ")))
	}
	lines = append(lines, field("latency", fmt.Sprintf("%dms", result.LatencyMs)))
	if result.SRV {
		lines = append(lines, field("srv", "yes"))
	}

	motd := strings.Split(result.MOTDPlain, "\n")
	lines = append(lines, field("motd", motd[0]))
	for _, line := range motd[1:] {
		lines = append(lines, strings.Repeat(" ", 10)+valueStyle.Render(line))
	}

	return strings.Join(lines, "\n")
}

// RenderPrettyTable renders one line per result followed by a summary.
func RenderPrettyTable(results []models.QueryResult) string {
	lines := make([]string, 0, len(results)+2)
	online := 0

	for _, result := range results {
		line := fmt.Sprintf("%s %s [%s]", statusLabel(result), address(result), result.Type)
		if result.Online {
			online++
			line += fmt.Sprintf(" %s %d/%d %dms %s",
				result.Version, result.PlayersOnline, result.PlayersMax, result.LatencyMs,
				normalizeSpace(result.MOTDPlain))
		} else {
			line += " " + result.ErrorMessage
		}
		lines = append(lines, valueStyle.Render(line))
	}

	lines = append(lines, "")
	summary := fmt.Sprintf("%d/%d online", online, len(results))
	if online == len(results) {
		lines = append(lines, successStyle.Render(summary))
	} else {
		lines = append(lines, failureStyle.Render(summary))
	}

	return strings.Join(lines, "\n")
}

func statusLabel(result models.QueryResult) string {
	switch result.Status {
	case models.StatusSuccess:
		return successStyle.Render("ONLINE")
	case models.StatusTimeout:
		return warnStyle.Render("TIMEOUT")
	default:
		return failureStyle.Render("OFFLINE")
	}
}

func address(result models.QueryResult) string {
	if strings.Contains(result.Host, ":") {
		return fmt.Sprintf("[%s]:%d", result.Host, result.Port)
	}
	return fmt.Sprintf("%s:%d", result.Host, result.Port)
}

func field(label, value string) string {
	return labelStyle.Render(fmt.Sprintf("%-9s ", label)) + valueStyle.Render(value)
}

func normalizeSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
