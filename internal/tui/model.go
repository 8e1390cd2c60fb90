package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"pdfchat/internal/lexical"
)

// ChatPort is the TUI-facing subset of the server client.
type ChatPort interface {
	SendMessage(ctx context.Context, text string) (string, error)
	UploadDocument(ctx context.Context, path string) (string, error)
}

const uploadCommand = "/upload "

type entry struct {
	user     bool
	text     string
	question string // for bot entries: the question being answered
}

// replyMsg carries the outcome of an asynchronous server call.
type replyMsg struct {
	question string
	text     string
	err      error
}

// Model is the Bubble Tea model for the chat client.
type Model struct {
	port     ChatPort
	server   string
	timeout  time.Duration
	input    textinput.Model
	viewport viewport.Model
	entries  []entry
	status   string
	busy     bool
	ready    bool
}

// New creates a chat model talking to server through port.
func New(port ChatPort, server string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question, or /upload <path>"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{
		port:     port,
		server:   server,
		timeout:  5 * time.Minute,
		input:    ti,
		viewport: vp,
		status:   "Connected to " + server + ". Upload a document to begin.",
	}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key, window and reply events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, th := transcriptStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		reserved := 2 + ih + 1 // header + status, input box
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-th)
		m.refresh()
		return m, nil
	case replyMsg:
		m.busy = false
		if msg.err != nil {
			m.entries = append(m.entries, entry{text: "Error: " + msg.err.Error()})
			m.status = "Request failed."
		} else {
			m.entries = append(m.entries, entry{text: msg.text, question: msg.question})
			m.status = "Ready."
		}
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		if msg.Type == tea.KeyEnter {
			return m.submit()
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	vpMsg, vpCmd := m.viewport.Update(msg)
	m.viewport = vpMsg
	return m, tea.Batch(cmd, vpCmd)
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" || m.busy {
		return m, nil
	}
	m.input.SetValue("")
	m.busy = true
	m.entries = append(m.entries, entry{user: true, text: text})

	var cmd tea.Cmd
	if strings.HasPrefix(text, uploadCommand) {
		path := strings.TrimSpace(strings.TrimPrefix(text, uploadCommand))
		m.status = "Uploading " + path + "..."
		cmd = m.call(func(ctx context.Context) (string, error) { return m.port.UploadDocument(ctx, path) }, "")
	} else {
		m.status = "Thinking..."
		cmd = m.call(func(ctx context.Context) (string, error) { return m.port.SendMessage(ctx, text) }, text)
	}
	m.refresh()
	return m, cmd
}

func (m Model) call(fn func(context.Context) (string, error), question string) tea.Cmd {
	timeout := m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		text, err := fn(ctx)
		return replyMsg{question: question, text: text, err: err}
	}
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

// View renders the TUI layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("PDF Chat") + "  " + dimStyle.Render(m.server)
	transcript := transcriptStyle.Render(m.viewport.View())
	input := inputStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	return header + "\n" + transcript + "\n" + input + "\n" + status
}

func (m Model) renderTranscript() string {
	if len(m.entries) == 0 {
		return dimStyle.Render("No messages yet. Try /upload ./document.pdf")
	}
	width := max(10, m.viewport.Width-2)
	var b strings.Builder
	for i, e := range m.entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if e.user {
			b.WriteString(userStyle.Render("You: "))
			b.WriteString(lipgloss.NewStyle().Width(width).Render(e.text))
			continue
		}
		b.WriteString(botStyle.Render("Bot: "))
		b.WriteString(lipgloss.NewStyle().Width(width).Render(highlightBestSentence(e.text, e.question)))
	}
	return b.String()
}

var (
	transcriptStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	userStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	botStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true)
	dimStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// highlightBestSentence emphasises the sentence of text sharing the most words with query.
func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	qTokens := lexical.TokenSet(query)
	sentences := lexical.Sentences(text)
	if len(qTokens) == 0 || len(sentences) < 2 {
		return text
	}
	bestIdx := 0
	bestScore := -1.0
	for i, s := range sentences {
		if score := lexical.Ochiai(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestScore <= 0 {
		return text
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}
