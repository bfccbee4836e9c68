package main

import (
	"fmt"
	"sort"
	"strings"

	"git.kernel.fun/chapati.systems/covfix/pkg/coverage"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui --file <path> [flags]",
	Short: "Interactively browse which records the fix pipeline keeps or drops",
	Long: `Run the rule pipeline over a coverage report and display every line
and branch record in a table sorted by file and line, showing whether it survived and,
if not, which rule dropped it.`,
	Example: `  covfix tui --file coverage/lcov.info`,
	RunE:    runTUI,
}

func runTUI(cmd *cobra.Command, args []string) error {
	if coverageFile == "" {
		files := detectExistingCoverageFiles()
		if len(files) != 1 {
			return fmt.Errorf("specify --file (auto-detect found %d candidates)", len(files))
		}
		coverageFile = files[0]
	}

	data, _, err := readReport(coverageFile, sourceRoot, forceFormat)
	if err != nil {
		return err
	}

	ignored, err := computeRuleDiff(data, func(msg string) { cmd.PrintErrf("warning: %s\n", msg) })
	if err != nil {
		return err
	}

	rows := buildRows(data, ignored)

	p := tea.NewProgram(newRecordTableModel(rows), tea.WithAltScreen())
	_, err = p.Run()
	return err
}

type recordRow struct {
	file   string
	kind   string
	line   int
	status string
}

func buildRows(data *coverage.PackageCoverage, ignored []ignoredRecord) []recordRow {
	droppedBy := make(map[string]string, len(ignored))
	for _, r := range ignored {
		droppedBy[fmt.Sprintf("%s:%s:%d", r.File, r.Kind, r.Line)] = r.Rule
	}

	var rows []recordRow
	for _, file := range data.Files {
		for _, l := range file.Lines {
			key := fmt.Sprintf("%s:line:%d", file.Path, l.LineNumber+1)
			status := "kept"
			if rule, dropped := droppedBy[key]; dropped {
				status = rule
			}
			rows = append(rows, recordRow{file: file.Path, kind: "line", line: l.LineNumber + 1, status: status})
		}
		for _, b := range file.Branches {
			key := fmt.Sprintf("%s:branch:%d", file.Path, b.LineNumber+1)
			status := "kept"
			if rule, dropped := droppedBy[key]; dropped {
				status = rule
			}
			rows = append(rows, recordRow{file: file.Path, kind: "branch", line: b.LineNumber + 1, status: status})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].file != rows[j].file {
			return rows[i].file < rows[j].file
		}
		return rows[i].line < rows[j].line
	})

	return rows
}

type recordTableModel struct {
	table table.Model
}

func newRecordTableModel(rows []recordRow) recordTableModel {
	columns := []table.Column{
		{Title: "File", Width: 40},
		{Title: "Line", Width: 6},
		{Title: "Kind", Width: 8},
		{Title: "Status", Width: 14},
	}

	tableRows := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		tableRows = append(tableRows, table.Row{r.file, fmt.Sprintf("%d", r.line), r.kind, r.status})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(tableRows),
		table.WithFocused(true),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	t.UpdateViewport()

	return recordTableModel{table: t}
}

func (m recordTableModel) Init() tea.Cmd { return nil }

func (m recordTableModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		m.table.SetHeight(msg.Height - 4)
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m recordTableModel) View() string {
	var b strings.Builder

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		Render("Coverage Fix Records")
	b.WriteString(title + "\n\n")

	help := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render("↑/↓ navigate • q quit")
	b.WriteString(help + "\n\n")

	b.WriteString(m.table.View())

	return b.String()
}
