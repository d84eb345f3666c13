package viz

import (
	"fmt"
	"io"
	"time"

	"github.com/san-kum/accelsim/internal/sim"
)

// Printer is a sim.Observer that writes one status line per sample, at most
// frameRate times per second. The first and every lossy sample always print.
type Printer struct {
	w         io.Writer
	interval  time.Duration
	lastFrame time.Time
	losses    int
	now       func() time.Time
}

func NewPrinter(w io.Writer, frameRate int) *Printer {
	p := &Printer{w: w, now: time.Now}
	if frameRate > 0 {
		p.interval = time.Second / time.Duration(frameRate)
	}
	return p
}

func (p *Printer) OnSample(s sim.Sample) {
	now := p.now()
	lost := s.Losses > p.losses
	p.losses = s.Losses
	if !lost && !p.lastFrame.IsZero() && now.Sub(p.lastFrame) < p.interval {
		return
	}
	p.lastFrame = now
	fmt.Fprintln(p.w, StatusLine(s))
}

func StatusLine(s sim.Sample) string {
	return fmt.Sprintf("step %6d  t=%.3es  particles=%-5d losses=%-5d emit_r=%.3e emit_z=%.3e",
		s.Step, s.Time, s.Particles, s.Losses, s.EmittanceR, s.EmittanceZ)
}
