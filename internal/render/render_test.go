package render

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/accelsim/internal/accelerator"
	"github.com/san-kum/accelsim/internal/beam"
	"github.com/san-kum/accelsim/internal/dynamo"
	"github.com/san-kum/accelsim/internal/lattice"
	"github.com/san-kum/accelsim/internal/particle"
)

// recorder counts draw calls per type.
type recorder struct {
	calls map[string]int
}

func newRecorder() *recorder { return &recorder{calls: map[string]int{}} }

func (r *recorder) DrawAccelerator(*accelerator.Accelerator) error {
	r.calls["accelerator"]++
	return nil
}

func (r *recorder) DrawBeam(*beam.Beam) error {
	r.calls["beam"]++
	return nil
}

func (r *recorder) DrawElement(*lattice.Element) error {
	r.calls["element"]++
	return nil
}

func (r *recorder) DrawParticle(*particle.Particle) error {
	r.calls["particle"]++
	return nil
}

func (r *recorder) DrawVector(dynamo.Vector3D) error {
	r.calls["vector"]++
	return nil
}

func testAccelerator(t *testing.T) (*accelerator.Accelerator, *beam.Beam) {
	t.Helper()
	acc := accelerator.New(accelerator.DefaultOptions())
	e, err := lattice.NewStraight(dynamo.NewVector3D(-5, 10, 0), dynamo.NewVector3D(5, 10, 0), 0.05)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := acc.AddElement(e); err != nil {
		t.Fatal(err)
	}
	p, err := particle.NewProton(dynamo.NewVector3D(0, 10, 0), particle.Proton.EnergyForGamma(1.2), dynamo.UnitX)
	if err != nil {
		t.Fatal(err)
	}
	b, err := acc.AddParticle(p)
	if err != nil {
		t.Fatal(err)
	}
	return acc, b
}

func TestDrawDispatch(t *testing.T) {
	acc, b := testAccelerator(t)
	rec := newRecorder()

	values := []any{acc, b, acc.Ring(), acc.Ring().At(0), *acc.Ring().At(0), b.Particles()[0], dynamo.UnitZ}
	for _, v := range values {
		if err := Draw(v, rec); err != nil {
			t.Fatalf("Draw(%T) error: %v", v, err)
		}
	}

	want := map[string]int{"accelerator": 1, "beam": 1, "element": 3, "particle": 1, "vector": 1}
	for k, n := range want {
		if rec.calls[k] != n {
			t.Errorf("%s calls = %d, want %d", k, rec.calls[k], n)
		}
	}
}

func TestDrawerFallback(t *testing.T) {
	rec := newRecorder()
	d := Drawer{Default: rec}
	if err := d.Draw(dynamo.UnitX, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.calls["vector"] != 1 {
		t.Error("default renderer not used")
	}

	other := newRecorder()
	if err := d.Draw(dynamo.UnitX, other); err != nil {
		t.Fatal(err)
	}
	if other.calls["vector"] != 1 || rec.calls["vector"] != 1 {
		t.Error("explicit renderer should win over the default")
	}
}

func TestDrawErrors(t *testing.T) {
	if err := Draw(dynamo.UnitX, nil); !errors.Is(err, dynamo.ErrNoRenderer) {
		t.Errorf("expected ErrNoRenderer, got %v", err)
	}
	if err := Draw(42, newRecorder()); !errors.Is(err, ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
}

func TestText(t *testing.T) {
	acc, b := testAccelerator(t)
	var buf bytes.Buffer
	txt := NewText(&buf)

	for _, v := range []any{acc, b.Particles()[0], dynamo.NewVector3D(1, 2, 3)} {
		if err := Draw(v, txt); err != nil {
			t.Fatal(err)
		}
	}

	out := buf.String()
	for _, prefix := range []string{"accelerator: ", "particle: ", "vector: "} {
		if !strings.Contains(out, prefix) {
			t.Errorf("output missing %q:\n%s", prefix, out)
		}
	}
	if strings.Contains(out, "\n\n") {
		t.Error("records should not leave blank lines")
	}
}

func TestTextFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.txt")
	txt, err := NewTextFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := txt.DrawVector(dynamo.UnitY); err != nil {
		t.Fatal(err)
	}
	if err := txt.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "vector: ") {
		t.Errorf("unexpected file content %q", data)
	}

	_, err = NewTextFile(filepath.Join(t.TempDir(), "missing", "dump.txt"))
	if !errors.Is(err, dynamo.ErrRendererOutput) {
		t.Errorf("expected ErrRendererOutput, got %v", err)
	}
}
