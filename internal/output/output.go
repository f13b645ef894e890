// Package output provides styled terminal output helpers (success, error,
// warning, task formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/marcus/vsync/internal/models"
)

var (
	// Styles
	titleStyle    = lipgloss.NewStyle().Bold(true)
	subtleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	doneStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("242")).Strikethrough(true)
	priorityStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// TaskLine renders one task for listings: title, priority, labels, id.
func TaskLine(t models.Task) string {
	var b strings.Builder
	if t.Done {
		b.WriteString(doneStyle.Render(t.Title))
	} else {
		b.WriteString(titleStyle.Render(t.Title))
	}
	if t.Priority > models.PriorityUnset {
		b.WriteString(" " + priorityStyle.Render(fmt.Sprintf("!!%d", t.Priority)))
	}
	for _, l := range t.Labels {
		b.WriteString(" " + labelStyle.Render("#"+l.Title))
	}
	if t.ID != 0 {
		b.WriteString(" " + subtleStyle.Render(fmt.Sprintf("(#%d)", t.ID)))
	}
	return b.String()
}

// VaultTaskLine renders a task together with its vault location.
func VaultTaskLine(vt models.VaultTask) string {
	return fmt.Sprintf("%s %s", TaskLine(vt.Task),
		subtleStyle.Render(fmt.Sprintf("%s:%d", vt.Filepath, vt.Lineno+1)))
}
