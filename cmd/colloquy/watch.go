package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/gorilla/websocket"

	"github.com/hupe1980/colloquy/core"
	"github.com/hupe1980/colloquy/server"
)

func watch(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	base := fs.String("server", "http://localhost:8000", "server base URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("watch: expected exactly one simulation id")
	}

	wsURL, err := streamURL(*base, fs.Arg(0))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", wsURL, err)
	}
	defer conn.Close()

	frames := make(chan tea.Msg, 64)
	go readFrames(conn, frames)

	final, err := tea.NewProgram(newWatchModel(fs.Arg(0), frames), tea.WithAltScreen()).Run()
	if err != nil {
		return err
	}
	if m, ok := final.(watchModel); ok && m.err != nil {
		return m.err
	}
	return nil
}

// streamURL maps the HTTP base URL to the simulation's WebSocket endpoint.
func streamURL(base, id string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("server url: unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/simulations/" + url.PathEscape(id) + "/ws"
	return u.String(), nil
}

type (
	eventMsg  core.Event
	closedMsg struct{ err error }
)

func readFrames(conn *websocket.Conn, out chan<- tea.Msg) {
	defer close(out)
	for {
		var f server.Frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				out <- closedMsg{}
			} else {
				out <- closedMsg{err: err}
			}
			return
		}
		ev, err := f.Event()
		if err != nil {
			continue
		}
		out <- eventMsg(ev)
	}
}

func waitFrame(ch <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return closedMsg{}
		}
		return msg
	}
}

// entry is one turn on the board. live entries are still streaming.
type entry struct {
	role    core.Role
	name    string
	turn    int
	content string
	live    bool
}

// board folds simulation events into displayable state.
type board struct {
	entries []entry
	status  core.Status
	typing  string
	errors  []string
	lastSeq uint64
	missed  uint64
}

func (b *board) apply(ev core.Event) {
	if ev.Seq > 0 {
		if b.lastSeq > 0 && ev.Seq > b.lastSeq+1 {
			b.missed += ev.Seq - b.lastSeq - 1
		}
		b.lastSeq = ev.Seq
	}

	switch p := ev.Payload.(type) {
	case core.StatusPayload:
		if p.Status == core.StatusTyping {
			b.typing = p.Name
			return
		}
		b.status = p.Status
		if b.done() {
			b.typing = ""
		}
	case core.TokenPayload:
		e := b.live(p.Name, p.Turn, p.Role)
		e.content += p.Token
	case core.MessagePayload:
		e := b.live(p.Name, p.Turn, p.Role)
		e.content = p.Content
		e.live = false
		b.typing = ""
	case core.ErrorPayload:
		b.errors = append(b.errors, p.Message)
	}
}

// live returns the entry for name's turn, appending one if needed.
func (b *board) live(name string, turn int, role core.Role) *entry {
	for i := len(b.entries) - 1; i >= 0; i-- {
		if e := &b.entries[i]; e.name == name && e.turn == turn {
			return e
		}
	}
	b.entries = append(b.entries, entry{role: role, name: name, turn: turn, live: true})
	return &b.entries[len(b.entries)-1]
}

func (b *board) done() bool {
	switch b.status {
	case core.StatusFinished, core.StatusStopped, core.StatusError:
		return true
	}
	return false
}

type watchStyles struct {
	header    lipgloss.Style
	status    lipgloss.Style
	errorLine lipgloss.Style
	speaker   map[core.Role]lipgloss.Style
	body      lipgloss.Style
	footer    lipgloss.Style
}

func newWatchStyles() watchStyles {
	accent := lipgloss.Color("#01cdfe")
	warn := lipgloss.Color("#ff71ce")
	muted := lipgloss.Color("#9ca3d8")
	return watchStyles{
		header: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accent),
		status:    lipgloss.NewStyle().Foreground(accent).Bold(true),
		errorLine: lipgloss.NewStyle().Foreground(warn).Bold(true),
		speaker: map[core.Role]lipgloss.Style{
			core.RoleAgent:       lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1")).Bold(true),
			core.RoleModerator:   lipgloss.NewStyle().Foreground(lipgloss.Color("#ffd166")).Bold(true),
			core.RoleSynthesizer: lipgloss.NewStyle().Foreground(lipgloss.Color("#c77dff")).Bold(true),
		},
		body:   lipgloss.NewStyle().PaddingLeft(2),
		footer: lipgloss.NewStyle().Foreground(muted),
	}
}

func (b *board) render(st watchStyles, width int) string {
	var sb strings.Builder
	body := st.body
	if width > 4 {
		body = body.Width(width - 2)
	}
	for _, e := range b.entries {
		label := fmt.Sprintf("[%d] %s", e.turn, e.name)
		if e.role.IsFacilitator() {
			label += " (" + e.role.String() + ")"
		}
		if e.live {
			label += " …"
		}
		sb.WriteString(st.speaker[e.role].Render(label))
		sb.WriteString("\n")
		sb.WriteString(body.Render(e.content))
		sb.WriteString("\n\n")
	}
	for _, msg := range b.errors {
		sb.WriteString(st.errorLine.Render("error: " + msg))
		sb.WriteString("\n")
	}
	return sb.String()
}

type watchModel struct {
	id       string
	frames   <-chan tea.Msg
	board    board
	viewport viewport.Model
	spinner  spinner.Model
	styles   watchStyles
	closed   bool
	err      error
	width    int
}

func newWatchModel(id string, frames <-chan tea.Msg) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1"))

	return watchModel{
		id:       id,
		frames:   frames,
		viewport: viewport.New(80, 20),
		spinner:  sp,
		styles:   newWatchStyles(),
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitFrame(m.frames))
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.viewport.Width = msg.Width
		m.viewport.Height = max(msg.Height-5, 3)
		m.refresh()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	case eventMsg:
		m.board.apply(core.Event(msg))
		m.refresh()
		cmds = append(cmds, waitFrame(m.frames))
	case closedMsg:
		m.closed = true
		m.err = msg.err
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *watchModel) refresh() {
	follow := m.viewport.AtBottom()
	m.viewport.SetContent(m.board.render(m.styles, m.width))
	if follow {
		m.viewport.GotoBottom()
	}
}

func (m watchModel) View() string {
	status := string(m.board.status)
	if status == "" {
		status = "connecting"
	}
	line := m.styles.status.Render(status)
	if m.board.typing != "" {
		line += " " + m.spinner.View() + " " + m.board.typing + " is typing"
	}
	header := m.styles.header.Render("colloquy · " + m.id + "  " + line)

	footer := "q quit · ↑/↓ scroll"
	if m.board.lastSeq > 0 {
		footer += fmt.Sprintf(" · seq %d", m.board.lastSeq)
	}
	if m.board.missed > 0 {
		footer += fmt.Sprintf(" · %d events missed", m.board.missed)
	}
	if m.closed {
		footer += " · stream closed"
		if m.err != nil {
			footer += ": " + m.err.Error()
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, m.viewport.View(), m.styles.footer.Render(footer))
}
