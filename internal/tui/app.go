// internal/tui/app.go
//
// This is the main TUI (Terminal User Interface) for qcdesk.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: Your application state
// 2. Update: A function that updates state based on messages
// 3. View: A function that renders state to a string
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen
//
// The record list lives in list_view.go, the record form in form_view.go.

package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/qc-desk/internal/api"
	"github.com/kingrea/qc-desk/internal/config"
	"github.com/kingrea/qc-desk/internal/form"
	"github.com/kingrea/qc-desk/internal/inspection"
	"github.com/kingrea/qc-desk/internal/logbook"
)

// appState represents which "screen" we're on
type appState int

const (
	stateList          appState = iota // Record table
	stateForm                          // Add/edit form over the draft
	stateConfirmDelete                 // Delete confirmation for one record
)

// Footer notifications.
const (
	noticeCreated = "新增成功 · 已新增一筆資料！"
	noticeUpdated = "更新成功 · 資料已更新！"
	noticeDeleted = "刪除成功 · 資料已刪除！"
	promptDelete  = "確定要刪除嗎?"
)

const logPanelLines = 6

// RecordService is the slice of the REST client the UI depends on.
type RecordService interface {
	List(ctx context.Context) ([]inspection.Record, error)
	Create(ctx context.Context, rec inspection.Record) (inspection.Record, error)
	Update(ctx context.Context, id string, rec inspection.Record) (inspection.Record, error)
	Delete(ctx context.Context, id string) error
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithRecordService replaces the HTTP client built from config.
func WithRecordService(svc RecordService) AppOption {
	return func(a *App) {
		if svc != nil {
			a.service = svc
		}
	}
}

// WithClock pins "now" for creation defaults and export file names.
func WithClock(clock func() time.Time) AppOption {
	return func(a *App) {
		if clock != nil {
			a.clock = clock
		}
	}
}

type recordsLoadedMsg struct {
	records []inspection.Record
	err     error
}

type submitFinishedMsg struct {
	mode form.Mode
	err  error
}

type deleteFinishedMsg struct {
	order string
	err   error
}

type exportFinishedMsg struct {
	path  string
	count int
	err   error
}

// App is the main application model. In bubbletea, this holds ALL your state.
type App struct {
	state   appState
	config  *config.Config
	service RecordService
	manager *form.Manager
	logbook *logbook.Logbook
	clock   func() time.Time
	loc     *time.Location

	// List screen
	records   []inspection.Record
	visible   []int
	table     table.Model
	filter    textinput.Model
	filtering bool
	loading   bool
	loadErr   string

	// Form screen
	formFocus int
	editor    textinput.Model

	pendingDelete inspection.Record

	statusMsg string // Footer notification
	statusErr bool

	// Window size (we get this from bubbletea)
	width  int
	height int
}

// NewApp creates a new App instance
func NewApp(projectDir string, opts ...AppOption) (*App, error) {
	cfg, err := config.NewConfig(projectDir)
	if err != nil {
		return nil, err
	}
	lb, err := logbook.New(cfg.JourneyLogPath())
	if err == nil {
		lb.Info("Session opened · service: %s%s", cfg.Project.API.BaseURL, cfg.Project.API.ItemsPath)
	}

	app := &App{
		state:   stateList,
		config:  cfg,
		logbook: lb,
		clock:   time.Now,
		loc:     cfg.Location(),
		table:   newRecordTable(),
		filter:  newTextInput("輸入關鍵字篩選…"),
		editor:  newTextInput(""),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(app)
		}
	}
	if app.service == nil {
		clientOpts := []api.Option{
			api.WithItemsPath(cfg.Project.API.ItemsPath),
			api.WithTimeout(cfg.Project.API.Timeout),
		}
		if lb != nil {
			clientOpts = append(clientOpts, api.WithLogger(lb))
		}
		client, err := api.NewClient(cfg.Project.API.BaseURL, clientOpts...)
		if err != nil {
			return nil, err
		}
		app.service = client
	}
	app.manager = form.NewManager(form.WithClock(app.clock), form.WithLocation(app.loc))
	return app, nil
}

func newTextInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = placeholder
	ti.Cursor.SetMode(cursor.CursorStatic)
	return ti
}

func (a *App) logInfo(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Info(format, args...)
}

func (a *App) logWarn(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Warn(format, args...)
}

func (a *App) logError(format string, args ...any) {
	if a.logbook == nil {
		return
	}
	a.logbook.Error(format, args...)
}

func (a *App) setStatus(format string, args ...any) {
	a.statusMsg = fmt.Sprintf(format, args...)
	a.statusErr = false
}

func (a *App) setError(format string, args ...any) {
	a.statusMsg = fmt.Sprintf(format, args...)
	a.statusErr = true
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return a.loadRecords()
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resizeTable()
		return a, nil

	case recordsLoadedMsg:
		return a.handleRecordsLoaded(msg)

	case submitFinishedMsg:
		return a.handleSubmitFinished(msg)

	case deleteFinishedMsg:
		return a.handleDeleteFinished(msg)

	case exportFinishedMsg:
		return a.handleExportFinished(msg)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		switch a.state {
		case stateForm:
			return a.handleFormKey(msg)
		case stateConfirmDelete:
			return a.handleConfirmKey(msg)
		default:
			return a.handleListKey(msg)
		}
	}
	return a, nil
}

func (a *App) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		target := a.pendingDelete
		a.state = stateList
		a.pendingDelete = inspection.Record{}
		a.setStatus("刪除中…")
		a.logInfo("Delete · %s (%s)", target.ProductionOrder, target.ID)
		return a, a.deleteRecord(target)
	case "n", "N", "esc", "q":
		a.state = stateList
		a.pendingDelete = inspection.Record{}
		a.setStatus("已取消刪除")
	}
	return a, nil
}

func (a *App) handleDeleteFinished(msg deleteFinishedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		a.setError("刪除失敗：%v", msg.err)
		a.logError("Delete %s failed: %v", msg.order, msg.err)
		return a, nil
	}
	a.setStatus(noticeDeleted)
	a.logInfo("Delete · %s done", msg.order)
	return a, a.loadRecords()
}

func (a *App) deleteRecord(rec inspection.Record) tea.Cmd {
	svc := a.service
	return func() tea.Msg {
		err := svc.Delete(context.Background(), rec.ID)
		return deleteFinishedMsg{order: rec.ProductionOrder, err: err}
	}
}

// View renders the current state to a string.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}
	var content string
	switch a.state {
	case stateForm:
		content = a.renderForm()
	case stateConfirmDelete:
		content = a.renderConfirm()
	default:
		content = a.renderList()
	}
	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#FF6B6B")).
		MarginBottom(1).
		Render("⬡ QC DESK · 品檢紀錄")
	body := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(max(20, width-4)).
		Render(content)
	sections := []string{header, body}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}
	sections = append(sections, a.renderFooter())
	return strings.Join(sections, "\n")
}

func (a *App) renderConfirm() string {
	rec := a.pendingDelete
	title := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B")).Render(promptDelete)
	detail := fmt.Sprintf("%s · %s · %s · %s",
		inspection.DisplayDate(inspection.NormalizeDate(rec.Date, a.loc)),
		rec.ProductionOrder,
		rec.Customer,
		rec.Inspector,
	)
	hint := lipgloss.NewStyle().Foreground(lipgloss.Color("#888888")).Render("y 確定刪除 · n 取消")
	return strings.Join([]string{title, "", detail, "", hint}, "\n")
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	lines, total := a.logbook.Tail(logPanelLines)
	if len(lines) == 0 {
		return ""
	}
	fileName := filepath.Base(a.logbook.Path())
	if fileName == "." || fileName == "" {
		fileName = "log"
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s (%d)", fileName, total))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(fmt.Sprintf("%s\n%s", head, body))
}

func (a *App) renderFooter() string {
	var hints string
	switch a.state {
	case stateForm:
		hints = "↑/↓ 移動 · ←/→ 切換選項 · ctrl+n 新增不良 · ctrl+d 移除不良 · ctrl+s 送出 · esc 取消"
	case stateConfirmDelete:
		hints = "y 確定 · n 取消"
	default:
		if a.filtering {
			hints = "enter 套用篩選 · esc 清除"
		} else {
			hints = "a 新增 · e 編輯 · d 刪除 · / 篩選 · r 重新整理 · x 匯出xlsx · X 匯出csv · q 離開"
		}
	}
	status := a.statusMsg
	color := "#888888"
	if a.statusErr {
		color = "#FF6B6B"
	}
	lines := []string{}
	if status != "" {
		lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(status))
	}
	lines = append(lines, lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).Render(hints))
	return lipgloss.NewStyle().MarginTop(1).Render(strings.Join(lines, "\n"))
}
