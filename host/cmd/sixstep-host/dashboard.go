package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"sixstep/core"
	"sixstep/host/mcu"
)

const (
	headerHeight = 4 // title, two status rows, blank line
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border

	rateDataSet = "rate"
	dutyDataSet = "duty"

	// Chart ceiling in commutations per second
	maxChartRate = 20000
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	rateStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))  // green
	dutyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208")) // orange
	faultStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

type dashboardModel struct {
	mcu      *mcu.MCU
	source   string
	chart    *streamlinechart.Model
	width    int      // terminal width
	height   int      // terminal height
	logs     []string // last N log messages
	quitting bool

	status     core.Telemetry
	haveStatus bool
	rate       float64 // Commutations per second from the last two reports
}

func (m *dashboardModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the drive
type statusMsg core.Telemetry
type logMsg string
type disconnectedMsg struct{ err error }

func waitForStatus(m *mcu.MCU) tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-m.Statuses():
			return statusMsg(s)
		case <-m.Done():
			return disconnectedMsg{m.Err()}
		}
	}
}

func waitForLog(m *mcu.MCU) tea.Cmd {
	return func() tea.Msg {
		select {
		case line := <-m.Logs():
			return logMsg(line)
		case <-m.Done():
			return nil
		}
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *dashboardModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - footerHeight - borderSize - 1
	if height < 10 {
		height = 10
	}
	return width, height
}

func initialDashboardModel(conn *mcu.MCU, source string) dashboardModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(0, maxChartRate),
	)
	chart.SetDataSetStyles(rateDataSet, runes.ThinLineStyle, rateStyle)
	chart.SetDataSetStyles(dutyDataSet, runes.ThinLineStyle, dutyStyle)

	return dashboardModel{
		mcu:    conn,
		source: source,
		chart:  &chart,
	}
}

func (m dashboardModel) Init() tea.Cmd {
	return tea.Batch(
		waitForStatus(m.mcu),
		waitForLog(m.mcu),
	)
}

func (m dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chart.Resize(m.chartSize())
		return m, nil

	case tea.KeyMsg:
		var err error
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "up", "+", "k":
			err = m.mcu.ThrottleUp()
		case "down", "-", "j":
			err = m.mcu.ThrottleDown()
		case "h", " ":
			err = m.mcu.Halt()
		case "r":
			err = m.mcu.Restart()
		}
		if err != nil {
			m.addLog("send failed: " + err.Error())
		}
		return m, nil

	case statusMsg:
		s := core.Telemetry(msg)
		if m.haveStatus {
			m.rate = commutationRate(m.status, s)
		}
		m.status = s
		m.haveStatus = true

		m.chart.PushDataSet(rateDataSet, m.rate)
		// Duty is drawn on the rate axis, full scale at MaxDuty
		m.chart.PushDataSet(dutyDataSet, float64(s.Duty)*maxChartRate/255)
		m.chart.DrawAll()
		return m, waitForStatus(m.mcu)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.mcu)

	case disconnectedMsg:
		if msg.err != nil {
			m.addLog("disconnected: " + msg.err.Error())
		} else {
			m.addLog("disconnected")
		}
		return m, nil
	}

	return m, nil
}

// commutationRate is the number of step advances per second between two
// reports
func commutationRate(prev, cur core.Telemetry) float64 {
	dt := cur.Clock - prev.Clock
	// A restart resets the counters
	if dt == 0 || cur.ForcedSteps < prev.ForcedSteps || cur.ZeroCrossings < prev.ZeroCrossings {
		return 0
	}
	steps := (cur.ForcedSteps - prev.ForcedSteps) + (cur.ZeroCrossings - prev.ZeroCrossings)
	return float64(steps) * float64(core.TimerFreq) / float64(dt)
}

func (m dashboardModel) View() string {
	if m.quitting {
		return "Monitor stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("sixstep"))
	sb.WriteString(" - " + m.source)
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n")
	sb.WriteString(m.renderStatus())
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")
	sb.WriteString(rateStyle.Render("━━") + " commutations/s  " + dutyStyle.Render("━━") + " duty")
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4)

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("up/down throttle, h halt, r restart, q quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m dashboardModel) renderStatus() string {
	if !m.haveStatus {
		return statusStyle.Render("waiting for telemetry...\n")
	}
	s := m.status

	state := "released"
	if s.Engaged {
		state = s.Mode.String()
	}
	line1 := fmt.Sprintf("%-9s step %d  %s  duty %3d  %6.0f comm/s",
		state, s.Step, core.EntryFor(s.Step).Drive, s.Duty, m.rate)
	line2 := statusStyle.Render(fmt.Sprintf("forced %d  zero crossings %d  ramp delay %dus  dropped %d",
		s.ForcedSteps, s.ZeroCrossings, s.StartupDelayUS, m.mcu.Dropped()))
	if s.Faults > 0 {
		line2 += "  " + faultStyle.Render(fmt.Sprintf("faults %d", s.Faults))
	}
	return line1 + "\n" + line2
}
