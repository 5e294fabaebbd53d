// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 Ben Rosenfeld

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/dmx"
	"github.com/Ben-Rosenfeld-VPS/esp-dmx/pkg/rdm"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Live universe monitor",
	Long: `Full-screen live view of the DMX universe: slot levels as a grid,
bus statistics, and a scrollable RDM event log.

Supports both serial and WebSocket connections.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

// rdmLogEntry is one line of the RDM event log
type rdmLogEntry struct {
	timestamp time.Time
	message   string
}

// frameMsg carries one received frame into the TUI
type frameMsg struct {
	frame []byte
	err   error
}

type tuiTickMsg time.Time

// tuiModel is the Bubble Tea model for the universe monitor
type tuiModel struct {
	connInfo string
	frames   <-chan frameMsg

	levels    [dmx.PacketSize - 1]byte
	slotCount int
	lastFrame time.Time

	stats  *dmx.Statistics
	rdmLog []rdmLogEntry
	maxLog int

	logView  viewport.Model
	width    int
	height   int
	quitting bool
	readErr  error
}

func initialTUIModel(connInfo string, frames <-chan frameMsg) tuiModel {
	return tuiModel{
		connInfo: connInfo,
		frames:   frames,
		stats:    dmx.NewStatistics(),
		maxLog:   200,
		logView:  viewport.New(80, 8),
		width:    80,
		height:   24,
	}
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(
		tuiTickCmd(),
		waitForFrame(m.frames),
		tea.EnterAltScreen,
	)
}

func tuiTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tuiTickMsg(t)
	})
}

func waitForFrame(frames <-chan frameMsg) tea.Cmd {
	return func() tea.Msg {
		return <-frames
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		// Remaining keys scroll the RDM log.
		var cmd tea.Cmd
		m.logView, cmd = m.logView.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logView.Width = msg.Width - 4
		logHeight := msg.Height - 26
		if logHeight < 4 {
			logHeight = 4
		}
		m.logView.Height = logHeight

	case tuiTickMsg:
		m.stats.CalculateRates()
		return m, tuiTickCmd()

	case frameMsg:
		if msg.err != nil {
			m.readErr = msg.err
			return m, nil
		}
		m.consumeFrame(msg.frame)
		return m, waitForFrame(m.frames)
	}

	return m, nil
}

func (m *tuiModel) consumeFrame(frame []byte) {
	if len(frame) == 0 {
		return
	}
	p := dmx.Packet{SC: int(frame[0]), Size: len(frame)}
	if _, ok := rdm.ReadHeader(frame); ok {
		p.IsRDM = true
		m.addRDMEntry(frame)
	} else if frame[0] == dmx.SCDMX {
		n := copy(m.levels[:], frame[1:])
		m.slotCount = n
		m.lastFrame = time.Now()
	}
	m.stats.Update(p)
}

func (m *tuiModel) addRDMEntry(frame []byte) {
	m.rdmLog = append(m.rdmLog, rdmLogEntry{timestamp: time.Now(), message: rdm.FormatPacket(frame)})
	if len(m.rdmLog) > m.maxLog {
		m.rdmLog = m.rdmLog[len(m.rdmLog)-m.maxLog:]
	}

	content := strings.Builder{}
	for _, e := range m.rdmLog {
		content.WriteString(e.timestamp.Format("15:04:05.000"))
		content.WriteString("  ")
		content.WriteString(e.message)
		content.WriteString("\n")
	}
	m.logView.SetContent(content.String())
	m.logView.GotoBottom()
}

// levelStyle buckets a slot level into a display color
func levelStyle(v byte) lipgloss.Style {
	switch {
	case v == 0:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	case v < 0x40:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	case v < 0xc0:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	}
}

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("DMX - UNIVERSE MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Connection: %s | Press 'q' to quit", m.connInfo)))
	s.WriteString("\n\n")

	if m.readErr != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Connection lost: %v", m.readErr)))
		s.WriteString("\n\n")
	}

	// Statistics
	errs := m.stats.Overflows + m.stats.FramingErrors
	statsContent := fmt.Sprintf("%s %s   %s %s   %s %s   %s %s\n%s %s   %s %s",
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		statsLabelStyle.Render("DMX:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.DMXFrames)),
		statsLabelStyle.Render("RDM:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.RDMFrames)),
		statsLabelStyle.Render("Errors:"), func() string {
			if errs > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", errs))
			}
			return statsValueStyle.Render("0")
		}(),
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f fps", m.stats.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f err/s", m.stats.ErrorRate)),
	)
	s.WriteString(boxStyle.Render(statsContent))
	s.WriteString("\n\n")

	// Universe grid
	s.WriteString(statsLabelStyle.Render("Universe:"))
	if m.slotCount > 0 {
		s.WriteString(headerStyle.Render(fmt.Sprintf("  %d slots, last frame %s ago",
			m.slotCount, time.Since(m.lastFrame).Round(time.Millisecond))))
	} else {
		s.WriteString(headerStyle.Render("  (no DMX frame yet)"))
	}
	s.WriteString("\n")
	s.WriteString(boxStyle.Render(m.renderGrid(headerStyle)))
	s.WriteString("\n\n")

	// RDM event log
	s.WriteString(statsLabelStyle.Render("RDM Events:"))
	s.WriteString("\n")
	if len(m.rdmLog) == 0 {
		s.WriteString(boxStyle.Width(m.width - 4).Render(headerStyle.Render("  (no RDM traffic yet)")))
	} else {
		s.WriteString(boxStyle.Width(m.width - 4).Render(m.logView.View()))
	}

	return s.String()
}

// renderGrid draws the first 256 slots as a 16x16 hex grid; wider
// terminals get all 512 in 32 columns.
func (m tuiModel) renderGrid(headerStyle lipgloss.Style) string {
	cols := 16
	if m.width >= 110 {
		cols = 32
	}
	rows := 512 / cols
	var g strings.Builder
	for r := 0; r < rows; r++ {
		base := r * cols
		if base >= 256 && cols == 16 {
			break
		}
		g.WriteString(headerStyle.Render(fmt.Sprintf("%3d ", base+1)))
		for c := 0; c < cols; c++ {
			v := m.levels[base+c]
			g.WriteString(levelStyle(v).Render(fmt.Sprintf("%02x", v)))
			g.WriteString(" ")
		}
		if r < rows-1 {
			g.WriteString("\n")
		}
	}
	return g.String()
}

func runTUI(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	frames := make(chan frameMsg, 16)
	go func() {
		buf := make([]byte, dmx.PacketSize)
		for {
			n, err := conn.ReadFrame(buf)
			if err != nil {
				frames <- frameMsg{err: err}
				return
			}
			if n == 0 {
				continue
			}
			frames <- frameMsg{frame: append([]byte(nil), buf[:n]...)}
		}
	}()

	p := tea.NewProgram(initialTUIModel(connInfo, frames))
	_, err = p.Run()
	return err
}
