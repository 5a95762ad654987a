package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/qc-desk/internal/form"
	"github.com/kingrea/qc-desk/internal/inspection"
)

type rowKind int

const (
	rowText    rowKind = iota // edited through the shared text input
	rowChoice                 // cycled with ←/→
	rowDisplay                // backend-populated, never edited
)

// formRow is one line of the form. defect is -1 for top-level fields.
type formRow struct {
	label  string
	field  string
	defect int
	kind   rowKind
}

func (r formRow) isDefect() bool { return r.defect >= 0 }

var headerRows = []formRow{
	{label: "銷售類別", field: form.FieldSalesType, defect: -1, kind: rowChoice},
	{label: "客戶", field: form.FieldCustomer, defect: -1, kind: rowText},
	{label: "製令單號", field: form.FieldProductionOrder, defect: -1, kind: rowText},
	{label: "日期", field: form.FieldDate, defect: -1, kind: rowText},
	{label: "時間", field: form.FieldTime, defect: -1, kind: rowText},
	{label: "作業員", field: form.FieldOperator, defect: -1, kind: rowText},
	{label: "圖面版次", field: form.FieldDrawingVersion, defect: -1, kind: rowText},
	{label: "檢驗員", field: form.FieldInspector, defect: -1, kind: rowText},
}

var salesTypeOptions = []string{
	string(inspection.SalesDomestic),
	string(inspection.SalesExport),
}

func categoryOptions() []string {
	options := []string{string(inspection.CategoryNone)}
	for _, c := range inspection.Categories {
		options = append(options, string(c))
	}
	return options
}

// formRows lays out the current draft: header fields, backend-populated
// fields when present, then three rows per defect entry.
func (a *App) formRows() []formRow {
	snap := a.manager.Snapshot()
	rows := append([]formRow{}, headerRows...)
	if snap.Department != "" {
		rows = append(rows, formRow{label: "部門", field: form.FieldDepartment, defect: -1, kind: rowDisplay})
	}
	if snap.FirstPieceInspection != "" {
		rows = append(rows, formRow{label: "首件檢驗", field: form.FieldFirstPieceInspection, defect: -1, kind: rowDisplay})
	}
	for i := range snap.Defects {
		rows = append(rows,
			formRow{label: fmt.Sprintf("不良%d 類別", i+1), field: form.FieldDefectCategory, defect: i, kind: rowChoice},
			formRow{label: fmt.Sprintf("不良%d 狀況", i+1), field: form.FieldDefectStatus, defect: i, kind: rowText},
			formRow{label: fmt.Sprintf("不良%d 對策", i+1), field: form.FieldCountermeasure, defect: i, kind: rowText},
		)
	}
	return rows
}

func rowValue(rec inspection.Record, row formRow) string {
	if row.isDefect() {
		if row.defect >= len(rec.Defects) {
			return ""
		}
		d := rec.Defects[row.defect]
		switch row.field {
		case form.FieldDefectCategory:
			return string(d.Category)
		case form.FieldDefectStatus:
			return d.Status
		case form.FieldCountermeasure:
			return d.Countermeasure
		}
		return ""
	}
	switch row.field {
	case form.FieldSalesType:
		return string(rec.SalesType)
	case form.FieldCustomer:
		return rec.Customer
	case form.FieldProductionOrder:
		return rec.ProductionOrder
	case form.FieldDate:
		return rec.Date
	case form.FieldTime:
		return rec.Time
	case form.FieldOperator:
		return rec.Operator
	case form.FieldDrawingVersion:
		return rec.DrawingVersion
	case form.FieldInspector:
		return rec.Inspector
	case form.FieldDepartment:
		return rec.Department.Display()
	case form.FieldFirstPieceInspection:
		return rec.FirstPieceInspection.Display()
	}
	return ""
}

func (a *App) rowEditable(row formRow) bool {
	if row.kind == rowDisplay {
		return false
	}
	if row.isDefect() {
		return a.manager.DefectFieldEditable(row.defect, row.field)
	}
	return a.manager.FieldEditable(row.field)
}

func (a *App) writeRow(row formRow, value string) error {
	if row.isDefect() {
		return a.manager.SetDefectField(row.defect, row.field, value)
	}
	return a.manager.SetField(row.field, value)
}

func (a *App) focusedRow() (formRow, bool) {
	rows := a.formRows()
	if a.formFocus < 0 || a.formFocus >= len(rows) {
		return formRow{}, false
	}
	return rows[a.formFocus], true
}

// focusRow moves the form cursor, clamped to the available rows, and loads
// the focused value into the editor.
func (a *App) focusRow(idx int) {
	rows := a.formRows()
	if len(rows) == 0 {
		a.formFocus = 0
		return
	}
	a.formFocus = min(max(idx, 0), len(rows)-1)
	a.syncEditor()
}

func (a *App) syncEditor() {
	row, ok := a.focusedRow()
	if !ok || row.kind != rowText {
		a.editor.SetValue("")
		a.editor.Blur()
		return
	}
	a.editor.SetValue(rowValue(a.manager.Snapshot(), row))
	a.editor.CursorEnd()
	if a.rowEditable(row) {
		a.editor.Focus()
	} else {
		a.editor.Blur()
	}
}

func (a *App) openCreateForm() (tea.Model, tea.Cmd) {
	a.manager.StartCreate()
	a.state = stateForm
	a.focusRow(0)
	a.setStatus("新增品檢紀錄")
	a.logInfo("Form · create opened")
	return a, nil
}

func (a *App) openEditForm(rec inspection.Record) (tea.Model, tea.Cmd) {
	a.manager.StartEdit(rec)
	a.state = stateForm
	a.focusRow(0)
	a.setStatus("編輯 %s", rec.ProductionOrder)
	a.logInfo("Form · edit opened for %s (%s)", rec.ProductionOrder, rec.ID)
	return a, nil
}

func (a *App) closeForm() {
	a.manager.Cancel()
	a.state = stateList
	a.formFocus = 0
	a.editor.SetValue("")
	a.editor.Blur()
}

func (a *App) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "esc":
		if a.manager.Busy() {
			a.setStatus("送出中，請稍候…")
			return a, nil
		}
		a.closeForm()
		a.setStatus("已取消")
		return a, nil
	case "ctrl+s":
		return a.submitForm()
	case "up", "shift+tab":
		a.focusRow(a.formFocus - 1)
		return a, nil
	case "down", "tab", "enter":
		a.focusRow(a.formFocus + 1)
		return a, nil
	case "ctrl+n":
		if a.manager.Busy() {
			return a, nil
		}
		a.manager.AddDefect()
		rows := a.formRows()
		a.focusRow(len(rows) - 3)
		a.setStatus("已新增不良項目 %d", a.manager.DefectCount())
		return a, nil
	case "ctrl+d":
		return a.removeFocusedDefect()
	}

	row, ok := a.focusedRow()
	if !ok || a.manager.Busy() {
		return a, nil
	}
	if row.kind == rowChoice && (key == "left" || key == "right") {
		step := 1
		if key == "left" {
			step = -1
		}
		a.cycleChoice(row, step)
		return a, nil
	}
	if row.kind != rowText {
		return a, nil
	}
	if !a.rowEditable(row) {
		if msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace || msg.Type == tea.KeyBackspace {
			a.setError("%s", lockedHint(row))
		}
		return a, nil
	}
	var cmd tea.Cmd
	a.editor, cmd = a.editor.Update(msg)
	if err := a.writeRow(row, a.editor.Value()); err != nil {
		a.setError("%s：%v", row.label, err)
		a.syncEditor()
	}
	return a, cmd
}

func lockedHint(row formRow) string {
	switch row.field {
	case form.FieldCustomer:
		return "內銷客戶固定為" + inspection.DomesticCustomer
	case form.FieldDefectStatus:
		return "請先選擇不良類別"
	case form.FieldCountermeasure:
		return "請先填寫不良狀況"
	}
	return row.label + "無法編輯"
}

func (a *App) cycleChoice(row formRow, step int) {
	snap := a.manager.Snapshot()
	var options []string
	var current string
	if row.isDefect() {
		options = categoryOptions()
		current = rowValue(snap, row)
	} else {
		options = salesTypeOptions
		current = string(snap.SalesType)
	}
	idx := -1
	for i, opt := range options {
		if opt == current {
			idx = i
			break
		}
	}
	next := options[((idx+step)%len(options)+len(options))%len(options)]
	if err := a.writeRow(row, next); err != nil {
		a.setError("%s：%v", row.label, err)
		return
	}
	a.syncEditor()
}

func (a *App) removeFocusedDefect() (tea.Model, tea.Cmd) {
	if a.manager.Busy() {
		return a, nil
	}
	row, ok := a.focusedRow()
	if !ok || !row.isDefect() {
		a.setError("請先移到要移除的不良項目")
		return a, nil
	}
	a.manager.RemoveDefect(row.defect)
	a.focusRow(a.formFocus)
	a.setStatus("已移除不良項目 %d", row.defect+1)
	return a, nil
}

func (a *App) submitForm() (tea.Model, tea.Cmd) {
	if a.manager.Busy() {
		a.setStatus("送出中，請稍候…")
		return a, nil
	}
	mode := a.manager.Mode()
	id := a.manager.Snapshot().ID
	payload, err := a.manager.BeginSubmit()
	if err != nil {
		if errors.Is(err, form.ErrNotSubmittable) {
			a.setError("尚有欄位未完成，無法送出")
			a.logWarn("Submit blocked: %v", err)
			return a, nil
		}
		a.setError("%v", err)
		return a, nil
	}
	a.editor.Blur()
	a.setStatus("送出中…")
	a.logInfo("Submit · %s %s with %d defect(s)", mode, payload.ProductionOrder, len(payload.Defects))
	svc := a.service
	return a, func() tea.Msg {
		ctx := context.Background()
		var err error
		if mode == form.ModeEdit {
			_, err = svc.Update(ctx, id, payload)
		} else {
			_, err = svc.Create(ctx, payload)
		}
		return submitFinishedMsg{mode: mode, err: err}
	}
}

func (a *App) handleSubmitFinished(msg submitFinishedMsg) (tea.Model, tea.Cmd) {
	a.manager.FinishSubmit(msg.err)
	if msg.err != nil {
		verb := "新增失敗"
		if msg.mode == form.ModeEdit {
			verb = "更新失敗"
		}
		a.setError("%s：%v", verb, msg.err)
		a.logError("Submit (%s) failed: %v", msg.mode, msg.err)
		a.syncEditor()
		return a, nil
	}
	a.closeForm()
	if msg.mode == form.ModeEdit {
		a.setStatus(noticeUpdated)
	} else {
		a.setStatus(noticeCreated)
	}
	a.logInfo("Submit (%s) done", msg.mode)
	return a, a.loadRecords()
}

var (
	labelStyle   = lipgloss.NewStyle().Width(12).Foreground(lipgloss.Color("#AAAAAA"))
	focusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#555555"))
	issueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#6BCB77"))
	sectionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

func (a *App) renderForm() string {
	snap := a.manager.Snapshot()
	issues := a.manager.Validate()
	title := "新增品檢紀錄"
	if a.manager.Mode() == form.ModeEdit {
		title = "編輯品檢紀錄"
	}
	if a.manager.Busy() {
		title += " · 送出中…"
	}
	lines := []string{focusStyle.Render(title), ""}
	rows := a.formRows()
	for i, row := range rows {
		if row.isDefect() && row.field == form.FieldDefectCategory {
			lines = append(lines, sectionStyle.Render(fmt.Sprintf("── 不良項目 %d ──", row.defect+1)))
		}
		lines = append(lines, a.renderFormRow(snap, row, i == a.formFocus, issues))
	}
	if len(snap.Defects) == 0 {
		lines = append(lines, sectionStyle.Render("── 無不良項目 (ctrl+n 新增) ──"))
	}
	lines = append(lines, "")
	submit := "ctrl+s 送出"
	if a.manager.Submittable() && !a.manager.Busy() {
		lines = append(lines, okStyle.Render(submit))
	} else {
		lines = append(lines, dimStyle.Render(submit))
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderFormRow(snap inspection.Record, row formRow, focused bool, issues form.Issues) string {
	marker := "  "
	if focused {
		marker = focusStyle.Render("▸ ")
	}
	editable := a.rowEditable(row)
	value := rowValue(snap, row)
	var rendered string
	switch {
	case row.kind == rowChoice:
		display := value
		if !row.isDefect() {
			display = snap.SalesType.Label()
		}
		if display == "" {
			display = "請選擇"
		}
		if focused && editable {
			rendered = focusStyle.Render("‹ " + display + " ›")
		} else {
			rendered = display
		}
	case focused && editable && row.kind == rowText:
		rendered = a.editor.View()
	default:
		rendered = value
	}
	if !editable {
		rendered = dimStyle.Render(rendered)
	}
	line := marker + labelStyle.Render(row.label) + rendered
	if row.field == form.FieldProductionOrder && !row.isDefect() {
		count := fmt.Sprintf(" %d/%d", inspection.UnitLength(snap.ProductionOrder), inspection.OrderNumberLength)
		if a.manager.OrderValid() {
			line += okStyle.Render(count)
		} else {
			line += issueStyle.Render(count)
		}
	}
	if !row.isDefect() {
		if msg, ok := issues[row.field]; ok {
			line += "  " + issueStyle.Render(msg)
		}
	}
	return line
}
