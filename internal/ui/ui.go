// Package ui is the Bubble Tea terminal front end. The session loop talks
// to it through channels so the render loop never blocks on the backend.
package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type inputRequest struct {
	prompt string
}

type confirmRequest struct {
	prompt string
}

type statusMsg struct {
	phase   string
	message string
}

// Channels carries the session-loop side of the UI bridge.
type Channels struct {
	InputReq    chan inputRequest
	InputResp   chan string
	ConfirmReq  chan confirmRequest
	ConfirmResp chan bool
	StatusChan  chan statusMsg
	MessageChan chan string
	ModelChan   chan string
	ReadyChan   chan struct{}
}

// NewChannels creates the bridge channels with small buffers on the
// fire-and-forget paths.
func NewChannels() *Channels {
	return &Channels{
		InputReq:    make(chan inputRequest),
		InputResp:   make(chan string),
		ConfirmReq:  make(chan confirmRequest),
		ConfirmResp: make(chan bool),
		StatusChan:  make(chan statusMsg, 10),
		MessageChan: make(chan string, 10),
		ModelChan:   make(chan string, 1),
		ReadyChan:   make(chan struct{}),
	}
}

// UI drives the Bubble Tea program and exposes blocking read methods to
// the session loop.
type UI struct {
	program *tea.Program

	inputReq    chan inputRequest
	inputResp   chan string
	confirmReq  chan confirmRequest
	confirmResp chan bool
	statusChan  chan statusMsg
	messageChan chan string
	modelChan   chan string
	readyChan   chan struct{}
}

// New creates the UI with its Bubble Tea program.
func New(channels *Channels, renderer MarkdownRenderer) *UI {
	if channels == nil {
		panic("channels is required")
	}
	if renderer == nil {
		panic("renderer is required")
	}

	ui := &UI{
		inputReq:    channels.InputReq,
		inputResp:   channels.InputResp,
		confirmReq:  channels.ConfirmReq,
		confirmResp: channels.ConfirmResp,
		statusChan:  channels.StatusChan,
		messageChan: channels.MessageChan,
		modelChan:   channels.ModelChan,
		readyChan:   channels.ReadyChan,
	}

	model := newModel(channels, renderer, func() spinner.Model {
		return spinner.New(spinner.WithSpinner(spinner.Dot))
	})
	ui.program = tea.NewProgram(model, tea.WithAltScreen())

	return ui
}

// Start runs the program and blocks until the user quits.
func (u *UI) Start() error {
	_, err := u.program.Run()
	return err
}

// Ready is closed once the program accepts requests.
func (u *UI) Ready() <-chan struct{} {
	return u.readyChan
}

// ReadInput blocks until the user submits a line.
func (u *UI) ReadInput(ctx context.Context, prompt string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case u.inputReq <- inputRequest{prompt: prompt}:
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case response := <-u.inputResp:
			return response, nil
		}
	}
}

// Confirm blocks until the user answers y or n.
func (u *UI) Confirm(ctx context.Context, prompt string) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case u.confirmReq <- confirmRequest{prompt: prompt}:
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case decision := <-u.confirmResp:
			return decision, nil
		}
	}
}

// WriteStatus updates the status bar. Dropped when the UI is busy.
func (u *UI) WriteStatus(phase, message string) {
	select {
	case u.statusChan <- statusMsg{phase: phase, message: message}:
	default:
	}
}

// WriteMessage appends an assistant message to the transcript.
func (u *UI) WriteMessage(content string) {
	select {
	case u.messageChan <- content:
	default:
	}
}

// SetModel updates the model name shown in the status bar.
func (u *UI) SetModel(name string) {
	select {
	case u.modelChan <- name:
	default:
	}
}

// Quit stops the program from the session-loop side.
func (u *UI) Quit() {
	u.program.Quit()
}
