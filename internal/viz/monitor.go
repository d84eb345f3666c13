package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/accelsim/internal/accelerator"
	"github.com/san-kum/accelsim/internal/sim"
)

const (
	frameRate       = 30
	historyCapacity = 600
	ringWidth       = 48
	ringHeight      = 16
	maxStepsPerTick = 1000
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Monitor is a Bubble Tea model that owns an accelerator, advances it a few
// steps per frame and keeps a rolling history of its diagnostics.
type Monitor struct {
	title   string
	build   sim.Builder
	acc     *accelerator.Accelerator
	view    *RingView
	cfg     sim.Config
	perTick int
	running bool
	err     error

	step      int
	last      sim.Sample
	particles []float64
	centroid  []float64
	emittance []float64
}

// NewMonitor builds the first accelerator from build. cfg.Steps bounds the
// run; cfg.SampleEvery is the number of steps per frame.
func NewMonitor(title string, build sim.Builder, cfg sim.Config) (*Monitor, error) {
	m := &Monitor{
		title:   title,
		build:   build,
		cfg:     cfg,
		perTick: max(cfg.SampleEvery, 1),
		running: true,
	}
	if err := m.reset(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Monitor) reset() error {
	acc, err := m.build()
	if err != nil {
		return err
	}
	m.acc = acc
	m.view = NewRingView(acc.Ring(), ringWidth, ringHeight)
	m.step = 0
	m.particles = m.particles[:0]
	m.centroid = m.centroid[:0]
	m.emittance = m.emittance[:0]
	m.record()
	return nil
}

func (m *Monitor) Accelerator() *accelerator.Accelerator { return m.acc }
func (m *Monitor) Step() int                             { return m.step }
func (m *Monitor) Running() bool                         { return m.running }
func (m *Monitor) StepsPerTick() int                     { return m.perTick }
func (m *Monitor) Last() sim.Sample                      { return m.last }
func (m *Monitor) Err() error                            { return m.err }

// Done reports whether the run hit its step bound or lost every particle.
func (m *Monitor) Done() bool {
	return m.step >= m.cfg.Steps || m.acc.ParticleCount() == 0
}

// Advance runs up to n steps, stopping early when Done.
func (m *Monitor) Advance(n int) {
	for i := 0; i < n && !m.Done(); i++ {
		m.acc.Step(m.cfg.Dt)
		m.step++
	}
	m.record()
}

func (m *Monitor) record() {
	m.last = sim.Snapshot(m.acc, m.step)
	m.particles = push(m.particles, float64(m.last.Particles))
	m.centroid = push(m.centroid, m.last.CentroidR*1e3)
	m.emittance = push(m.emittance, m.last.EmittanceR)
}

func push(h []float64, v float64) []float64 {
	h = append(h, v)
	if len(h) > historyCapacity {
		h = h[len(h)-historyCapacity:]
	}
	return h
}

func (m *Monitor) Init() tea.Cmd { return tick() }

func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "+", "=":
			m.perTick = min(m.perTick*2, maxStepsPerTick)
		case "-", "_":
			m.perTick = max(m.perTick/2, 1)
		case "r":
			if err := m.reset(); err != nil {
				m.err = err
				return m, tea.Quit
			}
		}
	case TickMsg:
		if m.running && !m.Done() {
			m.Advance(m.perTick)
		}
		return m, tick()
	}
	return m, nil
}

func (m *Monitor) status() string {
	switch {
	case m.acc.ParticleCount() == 0:
		return StatusLost.Render("BEAM LOST")
	case m.Done():
		return StatusPaused.Render("DONE")
	case !m.running:
		return StatusPaused.Render("PAUSED")
	}
	return StatusRunning.Render("RUNNING")
}

func row(label, value string) string {
	return MetricLabel.Render(label) + MetricValue.Render(value) + "\n"
}

func (m *Monitor) View() string {
	ring := Panel.Render(m.view.Render(m.acc.Beams()))

	var s strings.Builder
	s.WriteString(Header.Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(m.status() + "\n\n")
	s.WriteString(row("Step", fmt.Sprintf("%d / %d", m.step, m.cfg.Steps)))
	s.WriteString(row("Time", fmt.Sprintf("%.3e s", m.last.Time)))
	s.WriteString(row("Particles", fmt.Sprintf("%d", m.last.Particles)))
	s.WriteString(row("Losses", fmt.Sprintf("%d", m.last.Losses)))
	s.WriteString(row("Emit r", fmt.Sprintf("%.3e", m.last.EmittanceR)))
	s.WriteString(row("Emit z", fmt.Sprintf("%.3e", m.last.EmittanceZ)))
	s.WriteString(row("Steps/frm", fmt.Sprintf("%d", m.perTick)))
	s.WriteString("\n" + ProgressBar(float64(m.step)/float64(m.cfg.Steps), 30) + "\n")
	s.WriteString(Sparkline(m.particles, 30) + "\n")
	if len(m.centroid) > 1 {
		chart := asciigraph.Plot(m.centroid, asciigraph.Height(5), asciigraph.Width(30), asciigraph.Caption("centroid r (mm)"))
		s.WriteString("\n" + chart + "\n")
	}
	s.WriteString("\n" + KeyHint.Render("space:pause +/-:speed r:reset q:quit"))

	return lipgloss.JoinHorizontal(lipgloss.Top, ring, Panel.Render(s.String()))
}
