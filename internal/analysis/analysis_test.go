package analysis

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/accelsim/internal/beam"
	"github.com/san-kum/accelsim/internal/dynamo"
	"github.com/san-kum/accelsim/internal/lattice"
	"github.com/san-kum/accelsim/internal/particle"
)

func sine(n, bin int) []float64 {
	data := make([]float64, n)
	for i := range data {
		data[i] = 0.003 + 0.001*math.Sin(2*math.Pi*float64(bin)*float64(i)/float64(n))
	}
	return data
}

func TestPowerSpectrumPeak(t *testing.T) {
	ps := PowerSpectrum(sine(1024, 50))
	if len(ps) != 512 {
		t.Fatalf("expected 512 bins, got %d", len(ps))
	}
	peak := 0
	for i := range ps {
		if ps[i] > ps[peak] {
			peak = i
		}
	}
	if peak != 50 {
		t.Errorf("expected peak at bin 50, got %d", peak)
	}
	if ps[0] > ps[50]*1e-3 {
		t.Errorf("mean should be removed, DC bin %g", ps[0])
	}
}

func TestTune(t *testing.T) {
	const dt = 1e-10
	track := sine(2048, 64)

	f, err := DominantFrequency(track, dt)
	if err != nil {
		t.Fatal(err)
	}
	want := 64 / (2048 * dt)
	if math.Abs(f-want)/want > 1e-12 {
		t.Errorf("frequency = %g, want %g", f, want)
	}

	// one revolution every 512 samples: 16 oscillations per turn
	q, err := Tune(track, dt, 512*dt)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(q-16) > 1e-9 {
		t.Errorf("tune = %g, want 16", q)
	}

	if _, err := Tune([]float64{1, 2}, dt, 1); !errors.Is(err, ErrShortSignal) {
		t.Errorf("expected ErrShortSignal, got %v", err)
	}
}

func TestPhaseSpace(t *testing.T) {
	ring := lattice.NewRing(dynamo.Exact)
	e, err := lattice.NewStraight(dynamo.NewVector3D(-5, 10, 0), dynamo.NewVector3D(5, 10, 0), 0.05)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ring.Add(e); err != nil {
		t.Fatal(err)
	}
	seed, err := particle.NewFromVelocity(dynamo.NewVector3D(0, 10.01, 0), dynamo.NewVector3D(1e8, 1e5, 0), dynamo.ProtonMass, 1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := beam.NewSingle(ring, seed)
	if err != nil {
		t.Fatal(err)
	}

	portrait := PhaseSpace(b, beam.AxisR)
	if len(portrait.Points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(portrait.Points))
	}
	p := portrait.Points[0]
	if math.Abs(p.X-0.01) > 1e-9 || math.Abs(p.Y-1e5) > 1e-3 {
		t.Errorf("unexpected point %+v", p)
	}
}

func TestPhasePortraitToASCII(t *testing.T) {
	portrait := &PhasePortrait2D{Points: []Point{{-1, -1}, {1, 1}, {0.5, -0.5}}}
	out := PhasePortraitToASCII(portrait, 20, 10)

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 10 {
		t.Fatalf("expected 10 rows, got %d", len(lines))
	}
	if strings.Count(out, "•") != 3 {
		t.Errorf("expected 3 points plotted:\n%s", out)
	}
	if !strings.Contains(out, "│") || !strings.Contains(out, "─") {
		t.Errorf("expected both axes:\n%s", out)
	}

	if PhasePortraitToASCII(nil, 20, 10) != "" || PhasePortraitToASCII(&PhasePortrait2D{}, 20, 10) != "" {
		t.Error("empty portrait should render nothing")
	}
}
