// Package tui renders a live view of a stepping engine: an ascii canvas of
// the link positions, a stats pane and a height history plot for one
// tracked link.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/physkit/internal/engine"
	"github.com/san-kum/physkit/internal/scene"
)

const (
	canvasWidth     = 60
	canvasHeight    = 18
	historyCapacity = 240
	frameRate       = 60
)

// Horizontal world half-extent and vertical extent mapped onto the canvas.
const (
	viewHalfWidth = 8.0
	viewHeight    = 10.0
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(40)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(2)
)

type TickMsg time.Time

// Model steps the engine on every tick message and renders the scene.
type Model struct {
	engine engine.Engine
	scene  *scene.Scene
	track  string

	running      bool
	showContacts bool
	tick         uint64
	history      []float64
	canvas       [][]rune
}

func NewModel(e engine.Engine, s *scene.Scene, track string) Model {
	canvas := make([][]rune, canvasHeight)
	for i := range canvas {
		canvas[i] = make([]rune, canvasWidth)
	}
	if track == "" {
		if names := s.LinkNames(); len(names) > 0 {
			track = names[0]
		}
	}
	return Model{
		engine:  e,
		scene:   s,
		track:   track,
		running: true,
		history: make([]float64, 0, historyCapacity),
		canvas:  canvas,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.engine.Reset()
			m.tick = 0
			m.history = m.history[:0]
		case "c":
			m.showContacts = !m.showContacts
			m.engine.OnRequest(&engine.Request{Op: "show_contacts", Flag: m.showContacts})
		case "up", "k":
			m.scaleStepTime(1.25)
		case "down", "j":
			m.scaleStepTime(0.8)
		}
	case TickMsg:
		if m.running {
			m.step()
		}
		return m, tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
	}
	return m, nil
}

func (m *Model) scaleStepTime(factor float64) {
	step := m.engine.GetStepTime() * factor
	m.engine.OnPhysicsMsg(&engine.PhysicsMsg{StepTime: &step})
}

func (m *Model) step() {
	m.engine.UpdateCollision()
	m.engine.UpdatePhysics()
	m.tick++

	if m.track == "" {
		return
	}
	link, err := m.scene.LinkByName(m.track)
	if err != nil {
		return
	}
	if p, ok := link.(engine.Positioned); ok {
		m.history = append(m.history, p.Position().Y)
		if len(m.history) > historyCapacity {
			m.history = m.history[1:]
		}
	}
}

func (m *Model) draw() {
	for y := range m.canvas {
		for x := range m.canvas[y] {
			m.canvas[y][x] = ' '
		}
	}
	// ground line at world y = 0
	gy := worldToRow(0)
	for x := 0; x < canvasWidth; x++ {
		m.set(x, gy, '-')
	}
	for _, name := range m.scene.LinkNames() {
		link, err := m.scene.LinkByName(name)
		if err != nil {
			continue
		}
		p, ok := link.(engine.Positioned)
		if !ok {
			continue
		}
		pos := p.Position()
		glyph := 'O'
		if m.showContacts && m.engine.Contacts().Partner(link) != nil {
			glyph = '#'
		}
		m.set(worldToCol(pos.X), worldToRow(pos.Y), glyph)
	}
}

func (m *Model) set(x, y int, c rune) {
	if x >= 0 && x < canvasWidth && y >= 0 && y < canvasHeight {
		m.canvas[y][x] = c
	}
}

func worldToCol(x float64) int {
	return int((x + viewHalfWidth) / (2 * viewHalfWidth) * float64(canvasWidth-1))
}

func worldToRow(y float64) int {
	return canvasHeight - 2 - int(y/viewHeight*float64(canvasHeight-2))
}

func (m Model) View() string {
	m.draw()

	rows := make([]string, len(m.canvas))
	for i, row := range m.canvas {
		rows[i] = string(row)
	}
	canvasView := canvasStyle.Render(strings.Join(rows, "\n"))

	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.engine.Name())) + "\n")
	status := "RUNNING"
	if !m.running {
		status = "PAUSED"
	}
	s.WriteString(status + "\n\n")

	if len(m.history) > 1 {
		chart := asciigraph.Plot(m.history, asciigraph.Height(4), asciigraph.Width(30),
			asciigraph.Caption(m.track+" height"))
		s.WriteString(graphStyle.Render(chart) + "\n\n")
	}

	s.WriteString(labelStyle.Render("Tick") + valueStyle.Render(fmt.Sprintf("%d", m.tick)) + "\n")
	s.WriteString(labelStyle.Render("Step time") + valueStyle.Render(fmt.Sprintf("%.4fs", m.engine.GetStepTime())) + "\n")
	s.WriteString(labelStyle.Render("Rate") + valueStyle.Render(fmt.Sprintf("%.0f Hz", m.engine.GetUpdateRate())) + "\n")
	s.WriteString(labelStyle.Render("Contacts") + valueStyle.Render(fmt.Sprintf("%d", m.engine.Contacts().Size())) + "\n")
	s.WriteString(labelStyle.Render("Links") + valueStyle.Render(fmt.Sprintf("%d", len(m.scene.LinkNames()))) + "\n")

	s.WriteString(helpStyle.Render("\nSP:Pause R:Reset C:Contacts\n↑↓:Step time Q:Quit"))
	statsView := statsStyle.Render(s.String())

	return lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsView)
}
