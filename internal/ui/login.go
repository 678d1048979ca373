package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// DeviceCodeInfo carries what the user must do to approve the device.
type DeviceCodeInfo struct {
	VerificationURL string
	UserCode        string
}

type deviceInfoMsg DeviceCodeInfo

type loginDoneMsg struct {
	err error
}

// DeviceLoginModel renders the device authorization screen. The command
// layer runs the poller and feeds the model through the two channels.
type DeviceLoginModel struct {
	spinner  spinner.Model
	info     *DeviceCodeInfo
	infoChan <-chan DeviceCodeInfo
	doneChan <-chan error
	err      error
	done     bool
	help     help.Model
	keys     keyMap
}

// NewDeviceLoginModel creates the login view. infoChan delivers the device
// code once it is issued; doneChan delivers the poll outcome.
func NewDeviceLoginModel(infoChan <-chan DeviceCodeInfo, doneChan <-chan error) *DeviceLoginModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.title
	return &DeviceLoginModel{
		spinner:  sp,
		infoChan: infoChan,
		doneChan: doneChan,
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Err returns the poll outcome after the model has quit.
func (m *DeviceLoginModel) Err() error {
	return m.err
}

// Init starts the spinner and the channel readers.
func (m *DeviceLoginModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForInfo(), m.waitForDone())
}

// Update handles incoming messages and updates the model state.
func (m *DeviceLoginModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) {
			m.err = fmt.Errorf("login cancelled")
			return m, tea.Quit
		}
		return m, nil

	case deviceInfoMsg:
		info := DeviceCodeInfo(msg)
		m.info = &info
		return m, nil

	case loginDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the login screen.
func (m *DeviceLoginModel) View() string {
	if m.done {
		if m.err != nil {
			return styles.err.Render(fmt.Sprintf("✗ Login failed: %v", m.err)) + "\n"
		}
		return styles.ok.Render("✓ Device authorized") + "\n"
	}

	title := styles.title.Render("Sign in to iBroadcast")

	var body string
	if m.info == nil {
		body = fmt.Sprintf("%s Requesting device code...", m.spinner.View())
	} else {
		body = fmt.Sprintf(
			"Visit %s\nand enter code %s\n\n%s Waiting for approval...",
			styles.ok.Render(m.info.VerificationURL),
			styles.title.Render(m.info.UserCode),
			m.spinner.View(),
		)
	}

	helpView := m.help.ShortHelpView([]key.Binding{m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s\n", title, body, helpView)
}

func (m *DeviceLoginModel) waitForInfo() tea.Cmd {
	return func() tea.Msg {
		info, ok := <-m.infoChan
		if !ok {
			return nil
		}
		return deviceInfoMsg(info)
	}
}

func (m *DeviceLoginModel) waitForDone() tea.Cmd {
	return func() tea.Msg {
		return loginDoneMsg{err: <-m.doneChan}
	}
}
