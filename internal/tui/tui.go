package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/lox/rpsforbots/internal/game"
	"github.com/lox/rpsforbots/internal/protocol"
)

// TUIModel represents the Bubble Tea model for one game
type TUIModel struct {
	logger *log.Logger

	// UI components
	logViewport viewport.Model
	actionInput textinput.Model

	// State
	gameLog      []string
	actionResult chan ActionResult
	quitSignal   chan bool
	quitting     bool
	focusedPane  int // 0 = log, 1 = input

	// Game shown in the sidebar, refreshed from queries and events
	address game.Address
	gameID  string
	state   *protocol.QueryResultData

	// Dimensions
	width       int
	height      int
	initialized bool // Track if viewport has been properly sized

	// Test mode
	testMode    bool
	capturedLog []string // For test assertions
}

// ActionResult represents the result of a user action
type ActionResult struct {
	Action   string
	Args     []string
	Continue bool
	Error    error
}

// QuitMsg is a custom message to signal quit
type QuitMsg struct{}

// StateMsg carries a fresh query result.
type StateMsg protocol.QueryResultData

// EventMsg carries a game event broadcast by the server.
type EventMsg protocol.EventData

// LogMsg appends plain lines to the log.
type LogMsg []string

// ErrorMsg reports a failed command.
type ErrorMsg struct {
	Err error
}

// NewTUIModel creates a new TUI model for address playing gameID
func NewTUIModel(logger *log.Logger, address game.Address, gameID string) *TUIModel {
	return NewTUIModelWithOptions(logger, address, gameID, false)
}

// NewTUIModelWithOptions creates a new TUI model with test mode option
func NewTUIModelWithOptions(logger *log.Logger, address game.Address, gameID string, testMode bool) *TUIModel {
	// Will be properly sized when WindowSizeMsg arrives
	vp := viewport.New(10, 5)
	vp.SetContent("")

	ti := textinput.New()
	ti.Placeholder = "register, move rock, reveal, help"
	ti.Focus()
	ti.CharLimit = 100
	ti.Width = 100
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	ti.TextStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	ti.Prompt = "> "

	return &TUIModel{
		logger:       logger.WithPrefix("tui"),
		logViewport:  vp,
		actionInput:  ti,
		gameLog:      []string{},
		actionResult: make(chan ActionResult, 1),
		quitSignal:   make(chan bool, 1),
		focusedPane:  1, // Start with input focused
		address:      address,
		gameID:       gameID,
		testMode:     testMode,
		capturedLog:  []string{},
	}
}

// Init initializes the TUI model
func (m *TUIModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.listenForQuit())
}

// listenForQuit returns a command that listens for quit signals
func (m *TUIModel) listenForQuit() tea.Cmd {
	return func() tea.Msg {
		<-m.quitSignal
		return QuitMsg{}
	}
}

// Update handles messages in the TUI
func (m *TUIModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case QuitMsg:
		m.quitting = true
		return m, tea.Sequence(tea.ClearScreen, tea.Quit)

	case StateMsg:
		q := protocol.QueryResultData(msg)
		m.state = &q

	case EventMsg:
		m.applyEvent(protocol.EventData(msg))

	case LogMsg:
		for _, line := range msg {
			m.AddLogEntry(line)
		}

	case ErrorMsg:
		m.AddLogEntry(ErrorStyle.Render("✗ " + msg.Err.Error()))

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logger.Debug("Updating dimensions", "width", m.width, "height", m.height)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			m.sendAction(ActionResult{Action: "quit", Continue: false})
			return m, tea.Sequence(tea.ClearScreen, tea.Quit)
		case "tab":
			if m.focusedPane == 0 {
				m.focusedPane = 1
				m.actionInput.Focus()
			} else {
				m.focusedPane = 0
				m.actionInput.Blur()
			}
		case "enter":
			if m.focusedPane == 1 {
				m.processAction(strings.TrimSpace(m.actionInput.Value()))
				m.actionInput.SetValue("")
			}
		case "up", "k":
			if m.focusedPane == 0 {
				m.logViewport.ScrollUp(1)
			}
		case "down", "j":
			if m.focusedPane == 0 {
				m.logViewport.ScrollDown(1)
			}
		case "pgup", "b":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageUp()
			}
		case "pgdown", "f":
			if m.focusedPane == 0 {
				m.logViewport.HalfPageDown()
			}
		case "home", "g":
			if m.focusedPane == 0 {
				m.logViewport.GotoTop()
			}
		case "end", "G":
			if m.focusedPane == 0 {
				m.logViewport.GotoBottom()
			}
		}
	}

	var cmd tea.Cmd
	if m.focusedPane == 1 {
		m.actionInput, cmd = m.actionInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Always update viewport (for scrolling)
	m.logViewport, cmd = m.logViewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// applyEvent logs the event and folds its stage and pot into the sidebar.
func (m *TUIModel) applyEvent(ev protocol.EventData) {
	for _, line := range FormatEvent(ev, m.address) {
		m.AddLogEntry(line)
	}
	if m.state == nil {
		return
	}
	if ev.Stage.Kind != m.state.Stage.Kind || ev.GameNumber != m.state.GameNumber {
		m.state.StageStart = ev.At
		m.state.Deadline = time.Time{}
	}
	m.state.Stage = ev.Stage
	m.state.Pot = ev.Pot
	m.state.GameNumber = ev.GameNumber
}

// View renders the TUI
func (m *TUIModel) View() string {
	if m.quitting {
		return ""
	}

	// Don't render until we have valid dimensions
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	actionContent := m.renderActionPane()
	actionHeight := lipgloss.Height(actionContent)
	actionStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(max(m.width-2, 1)).
		Height(max(actionHeight-2, 1))
	if m.focusedPane == 1 {
		actionStyle = actionStyle.BorderForeground(lipgloss.Color("#04B575"))
	}
	actionPane := actionStyle.Render(actionContent)

	sidebarContent := m.renderSidebarPane()
	sidebarWidth := max(lipgloss.Width(sidebarContent), 28)
	paneHeight := max(m.height-actionHeight-4, 1)

	sidebarPane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(sidebarWidth).
		Height(paneHeight).
		Render(sidebarContent)

	logWidth := max(m.width-sidebarWidth-4, 1)
	m.logViewport.SetContent(m.renderLogPane())
	m.logViewport.Width = logWidth
	m.logViewport.Height = paneHeight

	// On first proper sizing, reset to top to avoid starting scrolled down
	if !m.initialized && logWidth > 1 && paneHeight > 1 {
		m.logViewport.GotoTop()
		m.initialized = true
	}

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#626262")).
		Width(logWidth).
		Height(paneHeight)
	if m.focusedPane == 0 {
		logStyle = logStyle.BorderForeground(lipgloss.Color("#04B575"))
	}
	logPane := logStyle.Render(m.logViewport.View())

	topRow := lipgloss.JoinHorizontal(lipgloss.Top, logPane, sidebarPane)
	return lipgloss.JoinVertical(lipgloss.Top, topRow, actionPane)
}

// renderLogPane renders the game log pane content
func (m *TUIModel) renderLogPane() string {
	return strings.Join(m.gameLog, "\n")
}

// renderSidebarPane creates the sidebar content
func (m *TUIModel) renderSidebarPane() string {
	var content strings.Builder

	content.WriteString(HeaderStyle.Render(" " + m.gameID + " "))
	content.WriteString("\n")
	content.WriteString(InfoStyle.Render("you: " + string(m.address)))
	content.WriteString("\n\n")

	if m.state == nil {
		content.WriteString(InfoStyle.Render("no state yet (type 'state')"))
		return content.String()
	}
	q := m.state

	content.WriteString(WarningStyle.Render(fmt.Sprintf("Pot: %d", q.Pot)))
	content.WriteString(" | ")
	content.WriteString(WarningStyle.Render(fmt.Sprintf("Bet: %d", q.Config.BetSize)))
	content.WriteString("\n")
	content.WriteString(fmt.Sprintf("Game #%d  %s\n", q.GameNumber+1, StageStyle(q.Stage.Kind).Render(q.Stage.Kind.String())))

	if !q.Deadline.IsZero() {
		content.WriteString(InfoStyle.Render("deadline " + q.Deadline.Format(time.TimeOnly)))
		content.WriteString("\n")
	}
	content.WriteString("\n")

	if q.Stage.GameInProgress() {
		content.WriteString(InfoStyle.Render("Players:"))
		content.WriteString("\n")
		for _, p := range q.Stage.Description.Finished.Slice() {
			content.WriteString(SuccessStyle.Render("  ✓ "+string(p)) + "\n")
		}
		for _, p := range q.Stage.Description.Anticipated.Slice() {
			content.WriteString(PlayerInfoStyle.Render("  … "+string(p)) + "\n")
		}
		return content.String()
	}

	content.WriteString(InfoStyle.Render(fmt.Sprintf("Lobby (%d/%d):", len(q.Lobby), q.Config.PlayersCountLimit)))
	content.WriteString("\n")
	for _, p := range q.Lobby {
		content.WriteString(PlayerInfoStyle.Render("  "+string(p)) + "\n")
	}
	return content.String()
}

// renderActionPane renders the action input pane
func (m *TUIModel) renderActionPane() string {
	var content strings.Builder

	content.WriteString(HandInfoStyle.Render(m.prompt()))
	content.WriteString("\n")
	content.WriteString(m.actionInput.View())
	content.WriteString("\n")

	help := "Tab to scroll log • Enter to submit • Ctrl+C to quit"
	if m.focusedPane == 0 {
		help = "Log focused: ↑↓ scroll, PgUp/PgDn half page, Home/End, Tab to input"
	}
	content.WriteString(InfoStyle.Render(help))
	return content.String()
}

// prompt tells the player what the game expects from them.
func (m *TUIModel) prompt() string {
	if m.state == nil {
		return "Waiting..."
	}
	d := m.state.Stage.Description
	switch m.state.Stage.Kind {
	case game.InProgress:
		if d.Anticipated.Contains(m.address) {
			return "Your move: " + ActionsStyle.Render("[move rock|paper|scissors|lizard|spock]")
		}
	case game.Reveal:
		if d.Anticipated.Contains(m.address) {
			return "Reveal now: " + ActionsStyle.Render("[reveal]")
		}
	case game.Preparation:
		for _, p := range m.state.Lobby {
			if p == m.address {
				return "In the lobby: " + ActionsStyle.Render("[move <m>] starts the game")
			}
		}
		return "Join: " + ActionsStyle.Render("[register]")
	}
	return "Waiting for other players..."
}

// AddLogEntry adds an entry to the game log
func (m *TUIModel) AddLogEntry(entry string) {
	m.gameLog = append(m.gameLog, entry)

	if m.testMode {
		m.capturedLog = append(m.capturedLog, entry)
		return // Skip UI updates in test mode
	}

	m.logViewport.SetContent(strings.Join(m.gameLog, "\n"))
	if m.logViewport.Height > 0 && m.logViewport.Width > 0 {
		m.logViewport.GotoBottom()
	}
}

// ClearLog clears the game log
func (m *TUIModel) ClearLog() {
	m.gameLog = []string{}
	m.logViewport.SetContent("")
}

func (m *TUIModel) sendAction(r ActionResult) {
	select {
	case m.actionResult <- r:
	default:
		m.logger.Warn("Dropping input while the previous command runs", "action", r.Action)
	}
}

// processAction splits user input into a command and its arguments
func (m *TUIModel) processAction(input string) {
	parts := strings.Fields(strings.ToLower(input))

	var action string
	var args []string
	if len(parts) > 0 {
		action = parts[0]
		args = parts[1:]
	}

	m.sendAction(ActionResult{
		Action:   action,
		Args:     args,
		Continue: true, // Let the command handler decide whether to continue
	})
}

// WaitForAction waits for user input (for use by the command loop)
func (m *TUIModel) WaitForAction() (string, []string, bool, error) {
	result := <-m.actionResult
	return result.Action, result.Args, result.Continue, result.Error
}

// SendQuitSignal signals the TUI to quit gracefully
func (m *TUIModel) SendQuitSignal() {
	select {
	case m.quitSignal <- true:
	default:
		// Channel is full, quit signal already sent
	}
}

// GetCapturedLog returns the captured log entries (test mode only)
func (m *TUIModel) GetCapturedLog() []string {
	if !m.testMode {
		return nil
	}
	result := make([]string, len(m.capturedLog))
	copy(result, m.capturedLog)
	return result
}

// InjectAction programmatically injects an action (test mode only)
func (m *TUIModel) InjectAction(action string, args []string) error {
	if !m.testMode {
		return fmt.Errorf("action injection only available in test mode")
	}

	select {
	case m.actionResult <- ActionResult{Action: action, Args: args, Continue: true}:
		return nil
	default:
		return fmt.Errorf("action channel full")
	}
}

// IsTestMode returns whether the TUI is in test mode
func (m *TUIModel) IsTestMode() bool {
	return m.testMode
}
