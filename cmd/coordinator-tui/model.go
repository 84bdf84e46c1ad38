package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lastmile/coordinator/internal/coordinator/intent"
	"github.com/lastmile/coordinator/internal/coordinator/models"
	"github.com/lastmile/coordinator/internal/coordinator/reasoning"
	"github.com/lastmile/coordinator/internal/coordinator/scenario"
	"github.com/lastmile/coordinator/internal/coordinator/service"
)

const (
	refreshInterval = 500 * time.Millisecond
	sidebarLogLimit = 8
)

// coordinator is the slice of the service the console drives.
type coordinator interface {
	Snapshot() models.Snapshot
	DriverSummary() models.DriverSummary
	QuickActions() []scenario.QuickAction
	DefaultCustomerID() string
	Submit(ctx context.Context, req service.SubmitRequest) (intent.Intent, error)
	StartDriverDelayInquiry(ctx context.Context, customerID, content string) error
}

type positionSource interface {
	Positions() []models.Position
}

type reasoningSource interface {
	View() reasoning.View
}

type tickMsg time.Time

type submitDoneMsg struct {
	text   string
	intent intent.Intent
	err    error
}

type theme struct {
	root        lipgloss.Style
	header      lipgloss.Style
	panel       lipgloss.Style
	panelTitle  lipgloss.Style
	inputPanel  lipgloss.Style
	footer      lipgloss.Style
	status      lipgloss.Style
	errorStatus lipgloss.Style
	helpText    lipgloss.Style
	user        lipgloss.Style
	agent       lipgloss.Style
	urgent      lipgloss.Style
	driver      map[models.DriverStatus]lipgloss.Style
}

func newTheme() theme {
	blue := lipgloss.Color("#3b82f6")
	green := lipgloss.Color("#22c55e")
	amber := lipgloss.Color("#f59e0b")
	red := lipgloss.Color("#ef4444")
	muted := lipgloss.Color("#9ca3af")

	return theme{
		root: lipgloss.NewStyle().Padding(0, 1),
		header: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Bold(true).
			Padding(0, 1),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(blue).
			Padding(0, 1),
		panelTitle: lipgloss.NewStyle().Foreground(green).Bold(true),
		inputPanel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(green).
			Padding(0, 1),
		footer:      lipgloss.NewStyle().Foreground(muted).Padding(0, 1),
		status:      lipgloss.NewStyle().Foreground(blue).Bold(true),
		errorStatus: lipgloss.NewStyle().Foreground(red).Bold(true),
		helpText:    lipgloss.NewStyle().Foreground(muted),
		user:        lipgloss.NewStyle().Foreground(blue).Bold(true),
		agent:       lipgloss.NewStyle().Foreground(green).Bold(true),
		urgent:      lipgloss.NewStyle().Foreground(red).Bold(true),
		driver: map[models.DriverStatus]lipgloss.Style{
			models.DriverStatusActive:  lipgloss.NewStyle().Foreground(green),
			models.DriverStatusBusy:    lipgloss.NewStyle().Foreground(amber),
			models.DriverStatusOffline: lipgloss.NewStyle().Foreground(muted),
		},
	}
}

type model struct {
	ctx       context.Context
	svc       coordinator
	positions positionSource
	reasoning reasoningSource
	interval  time.Duration

	snapshot   models.Snapshot
	summary    models.DriverSummary
	view       reasoning.View
	moving     map[string]models.Position
	quick      []scenario.QuickAction
	quickIndex int
	inflight   bool
	pending    bool // submit sent, not yet acknowledged
	statusLine string

	width  int
	height int

	input   textinput.Model
	chat    viewport.Model
	sidebar viewport.Model
	spinner spinner.Model
	theme   theme
}

func newModel(ctx context.Context, svc coordinator, positions positionSource, rs reasoningSource, interval time.Duration) model {
	input := textinput.New()
	input.Prompt = "❯ "
	input.CharLimit = 1000
	input.Placeholder = "Ask about an order or a late driver. Tab cycles quick actions."
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))

	chat := viewport.New(0, 0)
	chat.MouseWheelEnabled = true
	sidebar := viewport.New(0, 0)
	sidebar.MouseWheelEnabled = true

	m := model{
		ctx:        ctx,
		svc:        svc,
		positions:  positions,
		reasoning:  rs,
		interval:   interval,
		quick:      svc.QuickActions(),
		quickIndex: -1,
		statusLine: "ready",
		width:      100,
		height:     30,
		input:      input,
		chat:       chat,
		sidebar:    sidebar,
		spinner:    sp,
		theme:      newTheme(),
	}
	m.refresh()
	return m
}

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, tickEvery(m.interval))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.renderPanes()
	case tickMsg:
		m.refresh()
		cmds = append(cmds, tickEvery(m.interval))
	case submitDoneMsg:
		m.pending = false
		switch {
		case isBusy(msg.err):
			m.inflight = false
			m.statusLine = "agent is busy, wait for the current workflow"
		case msg.err != nil:
			m.inflight = false
			m.statusLine = "send failed: " + msg.err.Error()
		default:
			m.statusLine = fmt.Sprintf("sent (%s)", msg.intent)
		}
		m.refresh()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyTab:
			if len(m.quick) > 0 {
				m.quickIndex = (m.quickIndex + 1) % len(m.quick)
				m.input.SetValue(m.quick[m.quickIndex].Text)
				m.input.CursorEnd()
			}
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.chat, cmd = m.chat.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			if m.inflight {
				m.statusLine = "agent is busy, wait for the current workflow"
				return m, nil
			}
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.inflight = true
			m.pending = true
			m.statusLine = "processing..."
			cmd := m.submitCmd(text, m.pickedQuickAction(text))
			m.input.SetValue("")
			m.quickIndex = -1
			return m, cmd
		}
		if m.inflight {
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	case tea.MouseMsg:
		var cmd tea.Cmd
		m.chat, cmd = m.chat.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// pickedQuickAction returns the selected quick action when text still
// matches it verbatim.
func (m model) pickedQuickAction(text string) *scenario.QuickAction {
	if m.quickIndex < 0 || m.quickIndex >= len(m.quick) {
		return nil
	}
	qa := m.quick[m.quickIndex]
	if qa.Text != text {
		return nil
	}
	return &qa
}

// submitCmd sends text through the front door. Delay quick actions go
// straight to the delay workflow, bypassing classification.
func (m model) submitCmd(text string, qa *scenario.QuickAction) tea.Cmd {
	ctx, svc := m.ctx, m.svc
	return func() tea.Msg {
		if qa != nil && qa.Delay {
			err := svc.StartDriverDelayInquiry(ctx, svc.DefaultCustomerID(), text)
			return submitDoneMsg{text: text, intent: intent.DelayInquiry, err: err}
		}
		kind, err := svc.Submit(ctx, service.SubmitRequest{Content: text})
		return submitDoneMsg{text: text, intent: kind, err: err}
	}
}

func (m *model) refresh() {
	m.snapshot = m.svc.Snapshot()
	m.summary = m.svc.DriverSummary()
	m.view = m.reasoning.View()
	m.moving = make(map[string]models.Position)
	for _, p := range m.positions.Positions() {
		m.moving[p.DriverID] = p
	}
	if m.inflight && !m.pending && !m.snapshot.IsProcessing {
		m.inflight = false
		m.statusLine = "ready"
	}
	if m.snapshot.IsProcessing {
		m.inflight = true
		m.input.Blur()
	} else {
		m.input.Focus()
	}
	m.renderPanes()
}

func (m *model) renderPanes() {
	chatAtBottom := m.chat.AtBottom()

	contentWidth := maxInt(60, m.width-4)
	contentHeight := maxInt(10, m.height-10)
	leftWidth := contentWidth * 55 / 100
	rightWidth := contentWidth - leftWidth - 1

	m.chat.Width = maxInt(20, leftWidth-4)
	m.chat.Height = maxInt(5, contentHeight-3)
	m.sidebar.Width = maxInt(20, rightWidth-4)
	m.sidebar.Height = maxInt(5, contentHeight-3)
	m.input.Width = maxInt(20, contentWidth-8)

	m.chat.SetContent(m.renderChat())
	if chatAtBottom || m.chat.YOffset == 0 {
		m.chat.GotoBottom()
	}
	m.sidebar.SetContent(m.renderSidebar())
}

func (m *model) renderChat() string {
	var b strings.Builder
	for _, msg := range m.snapshot.Messages {
		style := m.theme.agent
		label := "agent"
		if msg.Sender == models.SenderUser {
			style, label = m.theme.user, "you"
		}
		header := fmt.Sprintf("%s [%s]", msg.Timestamp.Format("15:04:05"), label)
		if msg.Priority == models.PriorityHigh {
			header += " " + m.theme.urgent.Render("URGENT")
		}
		b.WriteString(style.Render(header))
		b.WriteString("\n")
		b.WriteString(wrapText(msg.Content, maxInt(20, m.chat.Width-2)))
		b.WriteString("\n")
		for _, action := range msg.Actions {
			b.WriteString(m.theme.helpText.Render("  • " + action))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func (m *model) renderSidebar() string {
	var b strings.Builder

	b.WriteString(m.theme.panelTitle.Render(fmt.Sprintf(
		"Drivers  %d total · %d active · %d busy · %d offline",
		m.summary.Total, m.summary.Active, m.summary.Busy, m.summary.Offline)))
	b.WriteString("\n")
	for _, d := range m.snapshot.Drivers {
		style, ok := m.theme.driver[d.Status]
		if !ok {
			style = m.theme.helpText
		}
		line := fmt.Sprintf("%-4s %-16s %-7s %-5s", d.ID, truncate(d.Name, 16), d.Status, d.ETA)
		if p, ok := m.moving[d.ID]; ok {
			line += fmt.Sprintf(" (%3.0f,%3.0f) %3.0f°", p.X, p.Y, p.Heading)
		}
		b.WriteString(style.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.theme.panelTitle.Render(fmt.Sprintf("Reasoning  confidence %.1f%%", m.view.Confidence)))
	b.WriteString("\n")
	for _, step := range m.view.Steps {
		b.WriteString(fmt.Sprintf("%s %s\n", stepMarker(step.Status), step.Step))
	}

	b.WriteString("\n")
	b.WriteString(m.theme.panelTitle.Render("Agent activity"))
	b.WriteString("\n")
	logs := m.snapshot.AgentLogs
	if len(logs) > sidebarLogLimit {
		logs = logs[len(logs)-sidebarLogLimit:]
	}
	if len(logs) == 0 {
		b.WriteString(m.theme.helpText.Render("no agent activity yet"))
	}
	for i := len(logs) - 1; i >= 0; i-- {
		entry := logs[i]
		b.WriteString(fmt.Sprintf("%s %s\n", entry.Timestamp.Format("15:04:05"), entry.Action))
		b.WriteString(m.theme.helpText.Render(wrapText(entry.Description, maxInt(20, m.sidebar.Width-2))))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func stepMarker(s reasoning.StepStatus) string {
	switch s {
	case reasoning.StepCompleted:
		return "✓"
	case reasoning.StepActive:
		return "▶"
	default:
		return "·"
	}
}

func (m model) View() string {
	contentWidth := maxInt(60, m.width-4)
	leftWidth := contentWidth * 55 / 100
	rightWidth := contentWidth - leftWidth - 1

	header := m.theme.header.Width(contentWidth).Render("Last-Mile Coordinator")
	left := m.theme.panel.Width(leftWidth).Render(m.theme.panelTitle.Render("Chat") + "\n" + m.chat.View())
	right := m.theme.panel.Width(rightWidth).Render(m.sidebar.View())
	content := lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)

	inputView := m.input.View()
	if m.inflight {
		inputView = m.spinner.View() + " agent working... input disabled"
	}
	input := m.theme.inputPanel.Width(contentWidth).Render(inputView)

	statusStyle := m.theme.status
	if strings.Contains(m.statusLine, "failed") || strings.Contains(m.statusLine, "busy") {
		statusStyle = m.theme.errorStatus
	}
	footer := m.theme.footer.Render(statusStyle.Render(m.statusLine) + "  " +
		m.theme.helpText.Render("Enter send · Tab quick action · PgUp/PgDn scroll · Esc quit"))

	return m.theme.root.Render(lipgloss.JoinVertical(lipgloss.Left, header, content, input, footer))
}

// isBusy reports whether err is the single-flight rejection.
func isBusy(err error) bool {
	return errors.Is(err, service.ErrBusy)
}

func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}
	lines := strings.Split(text, "\n")
	wrapped := make([]string, 0, len(lines))
	for _, line := range lines {
		words := strings.Fields(line)
		if len(words) == 0 {
			wrapped = append(wrapped, "")
			continue
		}
		current := words[0]
		for _, word := range words[1:] {
			if len(current)+1+len(word) <= width {
				current += " " + word
				continue
			}
			wrapped = append(wrapped, current)
			current = word
		}
		wrapped = append(wrapped, current)
	}
	return strings.Join(wrapped, "\n")
}

func truncate(text string, limit int) string {
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	if limit <= 1 {
		return string(r[:limit])
	}
	return string(r[:limit-1]) + "…"
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
