package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/accelsim/internal/config"
	"github.com/san-kum/accelsim/internal/experiment"
	"github.com/san-kum/accelsim/internal/render"
)

func TestWriteDumpListsOnce(t *testing.T) {
	acc, err := experiment.Build(experiment.NewRegistry(), config.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	svgPath := filepath.Join(t.TempDir(), "ring.svg")
	if err := writeDump(acc, render.NewText(&buf), svgPath); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if n := strings.Count(out, "ring closed"); n != 1 {
		t.Errorf("ring listed %d times:\n%s", n, out)
	}
	if n := strings.Count(out, "elem="); n != 1 {
		t.Errorf("particle listed %d times:\n%s", n, out)
	}
	if n := strings.Count(out, "accelerator:"); n != 1 {
		t.Errorf("expected one accelerator record, got %d", n)
	}

	data, err := os.ReadFile(svgPath)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "<circle") {
		t.Errorf("svg has no particle:\n%s", data)
	}
}
