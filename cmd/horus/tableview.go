package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/horus-robotics/horus-core/discovery"
)

var (
	purple = lipgloss.Color("99")
	green  = lipgloss.Color("76")
	red    = lipgloss.Color("204")
	yellow = lipgloss.Color("214")
	faint  = lipgloss.Color("238")
)

func renderNodes(nodes []discovery.NodeView) string {
	headerStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	rows := make([][]string, len(nodes))
	for i, n := range nodes {
		rows[i] = []string{
			n.Name,
			n.State,
			healthStyle(n.Health).Render(n.Health),
			fmt.Sprintf("%d", n.TickCount),
			fmt.Sprintf("%d", n.Priority),
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("NODE", "STATE", "HEALTH", "TICKS", "PRIORITY").
		Rows(rows...)

	return t.String()
}

func renderTopics(topics []discovery.TopicView) string {
	headerStyle := lipgloss.NewStyle().Foreground(purple).Bold(true).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	rows := make([][]string, len(topics))
	for i, top := range topics {
		scope := "session"
		if top.Global {
			scope = "global"
		}
		active := "no"
		if top.Active {
			active = "yes"
		}
		rows[i] = []string{
			top.Name,
			scope,
			active,
			fmt.Sprintf("%d B", top.SizeBytes),
			fmt.Sprintf("%.1f Hz", top.RateHz),
		}
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(faint)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("TOPIC", "SCOPE", "ACTIVE", "SIZE", "RATE").
		Rows(rows...)

	return t.String()
}

func healthStyle(health string) lipgloss.Style {
	switch health {
	case "Healthy":
		return lipgloss.NewStyle().Foreground(green)
	case "Warning":
		return lipgloss.NewStyle().Foreground(yellow)
	case "Error", "Critical":
		return lipgloss.NewStyle().Foreground(red).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(faint)
	}
}

func timestamp() string {
	return time.Now().Format("15:04:05")
}
