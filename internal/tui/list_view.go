package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/kingrea/qc-desk/internal/export"
	"github.com/kingrea/qc-desk/internal/inspection"
)

var recordColumns = []table.Column{
	{Title: "日期", Width: 10},
	{Title: "時間", Width: 5},
	{Title: "類別", Width: 4},
	{Title: "客戶", Width: 10},
	{Title: "製令單號", Width: 18},
	{Title: "作業員", Width: 8},
	{Title: "檢驗員", Width: 8},
	{Title: "不良", Width: 4},
}

func newRecordTable() table.Model {
	t := table.New(
		table.WithColumns(recordColumns),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#5B8DEF")).
		Bold(false)
	t.SetStyles(styles)
	return t
}

func (a *App) resizeTable() {
	if a.width > 0 {
		a.table.SetWidth(max(40, a.width-8))
	}
	if a.height > 0 {
		a.table.SetHeight(max(5, a.height-18))
	}
}

// recordSource adapts the loaded records to fuzzy.Source.
type recordSource []inspection.Record

func (s recordSource) Len() int { return len(s) }

func (s recordSource) String(i int) string {
	rec := s[i]
	parts := []string{
		rec.ProductionOrder,
		rec.Customer,
		rec.SalesType.Label(),
		rec.Operator,
		rec.Inspector,
		rec.DrawingVersion,
		rec.Date,
	}
	for _, d := range rec.Defects {
		if d.HasCategory() {
			parts = append(parts, string(d.Category), d.Status)
		}
	}
	return strings.Join(parts, " ")
}

func (a *App) loadRecords() tea.Cmd {
	a.loading = true
	svc := a.service
	return func() tea.Msg {
		records, err := svc.List(context.Background())
		return recordsLoadedMsg{records: records, err: err}
	}
}

func (a *App) handleRecordsLoaded(msg recordsLoadedMsg) (tea.Model, tea.Cmd) {
	a.loading = false
	if msg.err != nil {
		a.loadErr = msg.err.Error()
		a.setError("讀取失敗：%v", msg.err)
		a.logError("Load records failed: %v", msg.err)
		return a, nil
	}
	a.loadErr = ""
	a.records = msg.records
	a.applyFilter()
	a.logInfo("Loaded %d record(s)", len(a.records))
	return a, nil
}

// applyFilter recomputes the visible rows from the filter query. An empty
// query shows every record in server order; otherwise rows are ranked by
// fuzzy match score.
func (a *App) applyFilter() {
	query := strings.TrimSpace(a.filter.Value())
	a.visible = a.visible[:0]
	if query == "" {
		for i := range a.records {
			a.visible = append(a.visible, i)
		}
	} else {
		for _, match := range fuzzy.FindFrom(query, recordSource(a.records)) {
			a.visible = append(a.visible, match.Index)
		}
	}
	rows := make([]table.Row, 0, len(a.visible))
	for _, idx := range a.visible {
		rows = append(rows, a.recordRow(a.records[idx]))
	}
	a.table.SetRows(rows)
	if len(rows) > 0 {
		a.table.SetCursor(min(max(a.table.Cursor(), 0), len(rows)-1))
	}
}

func (a *App) recordRow(rec inspection.Record) table.Row {
	return table.Row{
		inspection.DisplayDate(inspection.NormalizeDate(rec.Date, a.loc)),
		inspection.NormalizeTime(rec.Time, a.loc),
		rec.SalesType.Label(),
		rec.Customer,
		rec.ProductionOrder,
		rec.Operator,
		rec.Inspector,
		strconv.Itoa(rec.DefectCount()),
	}
}

// selectedRecord returns the record under the table cursor.
func (a *App) selectedRecord() (inspection.Record, bool) {
	cursor := a.table.Cursor()
	if cursor < 0 || cursor >= len(a.visible) {
		return inspection.Record{}, false
	}
	return a.records[a.visible[cursor]], true
}

func (a *App) visibleRecords() []inspection.Record {
	out := make([]inspection.Record, 0, len(a.visible))
	for _, idx := range a.visible {
		out = append(out, a.records[idx])
	}
	return out
}

func (a *App) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.filtering {
		return a.handleFilterKey(msg)
	}
	switch msg.String() {
	case "q":
		a.logInfo("Session closed")
		return a, tea.Quit
	case "/":
		a.filtering = true
		a.table.Blur()
		return a, a.filter.Focus()
	case "esc":
		if a.filter.Value() != "" {
			a.filter.SetValue("")
			a.applyFilter()
			a.setStatus("已清除篩選")
		}
		return a, nil
	case "a":
		return a.openCreateForm()
	case "e", "enter":
		rec, ok := a.selectedRecord()
		if !ok {
			a.setError("沒有可編輯的資料")
			return a, nil
		}
		return a.openEditForm(rec)
	case "d":
		rec, ok := a.selectedRecord()
		if !ok {
			a.setError("沒有可刪除的資料")
			return a, nil
		}
		a.pendingDelete = rec
		a.state = stateConfirmDelete
		a.setStatus(promptDelete)
		return a, nil
	case "r":
		a.setStatus("重新整理中…")
		return a, a.loadRecords()
	case "x":
		return a, a.exportRecords(export.FormatXLSX)
	case "X":
		return a, a.exportRecords(export.FormatCSV)
	}
	var cmd tea.Cmd
	a.table, cmd = a.table.Update(msg)
	return a, cmd
}

func (a *App) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.filter.SetValue("")
		a.endFiltering()
		a.applyFilter()
		return a, nil
	case "enter":
		a.endFiltering()
		return a, nil
	}
	var cmd tea.Cmd
	a.filter, cmd = a.filter.Update(msg)
	a.applyFilter()
	return a, cmd
}

func (a *App) endFiltering() {
	a.filtering = false
	a.filter.Blur()
	a.table.Focus()
}

func (a *App) exportRecords(format export.Format) tea.Cmd {
	records := a.visibleRecords()
	if len(records) == 0 {
		a.setError("沒有可匯出的資料")
		return nil
	}
	encoding, err := export.ParseEncoding(a.config.Project.Export.CSVEncoding)
	if err != nil {
		a.setError("匯出失敗：%v", err)
		return nil
	}
	path := filepath.Join(a.config.ExportDir(), export.FileName(format, a.clock()))
	opts := export.Options{Format: format, Encoding: encoding, Location: a.loc}
	a.setStatus("匯出中…")
	return func() tea.Msg {
		err := export.WriteFile(path, records, opts)
		return exportFinishedMsg{path: path, count: len(records), err: err}
	}
}

func (a *App) handleExportFinished(msg exportFinishedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		a.setError("匯出失敗：%v", msg.err)
		a.logError("Export failed: %v", msg.err)
		return a, nil
	}
	a.setStatus("匯出完成 · %d 筆 → %s", msg.count, msg.path)
	a.logInfo("Exported %d record(s) to %s", msg.count, msg.path)
	return a, nil
}

func (a *App) renderList() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("品檢紀錄 · %d 筆", len(a.records)))
	lines := []string{title}
	if query := strings.TrimSpace(a.filter.Value()); query != "" || a.filtering {
		label := lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA")).Render("篩選：")
		lines = append(lines, fmt.Sprintf("%s%s (%d)", label, a.filter.View(), len(a.visible)))
	}
	lines = append(lines, "")
	switch {
	case a.loading && len(a.records) == 0:
		lines = append(lines, "讀取中…")
	case a.loadErr != "" && len(a.records) == 0:
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Render("無法連線至服務，按 r 重試"))
	case len(a.visible) == 0:
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("尚無資料"))
	default:
		lines = append(lines, a.table.View())
	}
	return strings.Join(lines, "\n")
}
