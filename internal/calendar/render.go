package calendar

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const cellWidth = 6

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle   = lipgloss.NewStyle().Width(cellWidth).Align(lipgloss.Center).Foreground(lipgloss.Color("245"))
	sundayStyle   = headerStyle.Foreground(lipgloss.Color("196"))
	saturdayStyle = headerStyle.Foreground(lipgloss.Color("39"))

	cellStyle     = lipgloss.NewStyle().Width(cellWidth).Align(lipgloss.Center)
	outsideStyle  = cellStyle.Foreground(lipgloss.Color("238"))
	todayStyle    = cellStyle.Bold(true).Foreground(lipgloss.Color("214"))
	selectedStyle = cellStyle.Background(lipgloss.Color("236")).Foreground(lipgloss.Color("205")).Bold(true)
	starStyle     = lipgloss.NewStyle().Width(cellWidth).Align(lipgloss.Center).Foreground(lipgloss.Color("220"))
)

// Render draws the month for the terminal: a day-number row and a star row per week.
func Render(m Month) string {
	var rows []string
	rows = append(rows, titleStyle.Render(fmt.Sprintf("%s  (%d)", m.Title(), m.Total())))

	headers := make([]string, len(Weekdays))
	for i, w := range Weekdays {
		switch i {
		case 0:
			headers[i] = sundayStyle.Render(w)
		case 6:
			headers[i] = saturdayStyle.Render(w)
		default:
			headers[i] = headerStyle.Render(w)
		}
	}
	rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, headers...))

	for _, week := range m.Weeks {
		days := make([]string, 7)
		stars := make([]string, 7)
		for i, d := range week {
			days[i] = dayStyle(d).Render(fmt.Sprintf("%d", d.Day))
			if d.InMonth {
				stars[i] = starStyle.Render(d.Stars())
			} else {
				stars[i] = starStyle.Render("")
			}
		}
		rows = append(rows,
			lipgloss.JoinHorizontal(lipgloss.Top, days...),
			lipgloss.JoinHorizontal(lipgloss.Top, stars...))
	}
	return strings.Join(rows, "\n")
}

func dayStyle(d Day) lipgloss.Style {
	switch {
	case !d.InMonth:
		return outsideStyle
	case d.Selected:
		return selectedStyle
	case d.Today:
		return todayStyle
	default:
		return cellStyle
	}
}
