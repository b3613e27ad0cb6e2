package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

type chatMessage struct {
	role    string
	content string
}

// SpinnerFactory creates the status spinner.
type SpinnerFactory func() spinner.Model

type model struct {
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	renderer MarkdownRenderer

	messages       []chatMessage
	width          int
	height         int
	canSubmit      bool
	pendingConfirm string
	statusPhase    string
	statusMessage  string
	modelName      string

	inputReq    <-chan inputRequest
	inputResp   chan<- string
	confirmReq  <-chan confirmRequest
	confirmResp chan<- bool
	statusChan  <-chan statusMsg
	messageChan <-chan string
	modelChan   <-chan string
	readyChan   chan<- struct{}
}

func newModel(channels *Channels, renderer MarkdownRenderer, spinnerFactory SpinnerFactory) model {
	ti := textinput.New()
	ti.Placeholder = "Tell me what to do..."
	ti.Focus()

	return model{
		input:       ti,
		viewport:    viewport.New(80, 20),
		spinner:     spinnerFactory(),
		renderer:    renderer,
		inputReq:    channels.InputReq,
		inputResp:   channels.InputResp,
		confirmReq:  channels.ConfirmReq,
		confirmResp: channels.ConfirmResp,
		statusChan:  channels.StatusChan,
		messageChan: channels.MessageChan,
		modelChan:   channels.ModelChan,
		readyChan:   channels.ReadyChan,
	}
}

type inputRequestMsg inputRequest
type confirmRequestMsg confirmRequest
type statusUpdateMsg statusMsg
type messageReceivedMsg string
type modelChangedMsg string

func (m model) Init() tea.Cmd {
	if m.readyChan != nil {
		close(m.readyChan)
	}

	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		listenForInput(m.inputReq),
		listenForConfirm(m.confirmReq),
		listenForStatus(m.statusChan),
		listenForMessages(m.messageChan),
		listenForModel(m.modelChan),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 6
		m.refreshViewport()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case inputRequestMsg:
		m.canSubmit = true
		if msg.prompt != "" {
			m.input.Placeholder = msg.prompt
		}
		return m, listenForInput(m.inputReq)

	case confirmRequestMsg:
		m.pendingConfirm = msg.prompt
		return m, listenForConfirm(m.confirmReq)

	case statusUpdateMsg:
		m.statusPhase = msg.phase
		m.statusMessage = msg.message
		return m, listenForStatus(m.statusChan)

	case messageReceivedMsg:
		m.messages = append(m.messages, chatMessage{role: "assistant", content: string(msg)})
		m.refreshViewport()
		return m, listenForMessages(m.messageChan)

	case modelChangedMsg:
		m.modelName = string(msg)
		return m, listenForModel(m.modelChan)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.pendingConfirm != "" {
		switch msg.String() {
		case "y", "Y":
			m.confirmResp <- true
			m.pendingConfirm = ""
		case "n", "N", "esc":
			m.confirmResp <- false
			m.pendingConfirm = ""
		}
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "enter":
		if m.canSubmit && strings.TrimSpace(m.input.Value()) != "" {
			input := m.input.Value()
			m.messages = append(m.messages, chatMessage{role: "user", content: input})
			m.refreshViewport()

			m.inputResp <- input
			m.input.SetValue("")
			m.canSubmit = false
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) refreshViewport() {
	width := m.width - 4
	if width < 20 {
		width = 76
	}

	var lines []string
	for _, msg := range m.messages {
		if msg.role == "user" {
			lines = append(lines, userMessageStyle.Render("You: "+msg.content))
		} else {
			rendered, err := m.renderer.Render(msg.content, width)
			if err != nil {
				rendered = msg.content
			}
			lines = append(lines, assistantMessageStyle.Render(strings.TrimRight(rendered, "\n")))
		}
		lines = append(lines, "")
	}

	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

func listenForInput(ch <-chan inputRequest) tea.Cmd {
	return func() tea.Msg { return inputRequestMsg(<-ch) }
}

func listenForConfirm(ch <-chan confirmRequest) tea.Cmd {
	return func() tea.Msg { return confirmRequestMsg(<-ch) }
}

func listenForStatus(ch <-chan statusMsg) tea.Cmd {
	return func() tea.Msg { return statusUpdateMsg(<-ch) }
}

func listenForMessages(ch <-chan string) tea.Cmd {
	return func() tea.Msg { return messageReceivedMsg(<-ch) }
}

func listenForModel(ch <-chan string) tea.Cmd {
	return func() tea.Msg { return modelChangedMsg(<-ch) }
}
