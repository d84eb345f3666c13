package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/accelsim/internal/config"
	"github.com/san-kum/accelsim/internal/sim"
)

const (
	metadataFile    = "metadata.json"
	diagnosticsFile = "diagnostics.csv"
	trackFile       = "track.csv"
)

var diagnosticsHeader = []string{
	"step", "time", "beams", "particles", "losses",
	"emittance_r", "emittance_z", "centroid_r", "centroid_z",
}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID           string             `json:"id"`
	Name         string             `json:"name"`
	Lattice      string             `json:"lattice"`
	Timestamp    time.Time          `json:"timestamp"`
	Dt           float64            `json:"dt"`
	Steps        int                `json:"steps"`
	StepsTaken   int                `json:"steps_taken"`
	Mode         string             `json:"mode"`
	Interactions bool               `json:"interactions"`
	Beams        int                `json:"beams"`
	Losses       int                `json:"losses"`
	Metrics      map[string]float64 `json:"metrics"`

	LatticeParams config.LatticeConfig `json:"lattice_params"`
}

// NewMetadata summarizes a finished run. The ID is left empty.
func NewMetadata(name string, cfg *config.Config, result *sim.Result) RunMetadata {
	return RunMetadata{
		Name:         name,
		Lattice:      cfg.Lattice,
		Timestamp:    time.Now(),
		Dt:           cfg.Dt,
		Steps:        cfg.Steps,
		StepsTaken:   result.StepsTaken,
		Mode:         cfg.Mode,
		Interactions: cfg.Interactions,
		Beams:        len(cfg.Beams),
		Losses:       result.Final().Losses,
		Metrics:      result.Metrics,

		LatticeParams: cfg.LatticeParams,
	}
}

// Save writes a run directory holding metadata, sampled diagnostics and the
// reference particle track. It returns the run ID.
func (s *Store) Save(name string, cfg *config.Config, result *sim.Result) (string, error) {
	meta := NewMetadata(name, cfg, result)
	meta.ID = fmt.Sprintf("%s_%d", name, meta.Timestamp.UnixNano())

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeSamples(filepath.Join(runDir, diagnosticsFile), result.Samples); err != nil {
		return "", err
	}
	if err := writeTrack(filepath.Join(runDir, trackFile), cfg.Dt, result.Track); err != nil {
		return "", err
	}

	return meta.ID, nil
}

// List returns all readable runs, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var runs []RunMetadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].Timestamp.After(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

func (s *Store) LoadSamples(runID string) ([]sim.Sample, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, diagnosticsFile))
	if err != nil {
		return nil, err
	}

	samples := make([]sim.Sample, 0, len(records))
	for i, rec := range records {
		if len(rec) != len(diagnosticsHeader) {
			return nil, fmt.Errorf("run %s: row %d has %d fields", runID, i+1, len(rec))
		}
		sample, err := parseSample(rec)
		if err != nil {
			return nil, fmt.Errorf("run %s: row %d: %w", runID, i+1, err)
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// LoadTrack returns the stored reference track and its time axis.
func (s *Store) LoadTrack(runID string) ([]float64, []float64, error) {
	records, err := readCSV(filepath.Join(s.baseDir, runID, trackFile))
	if err != nil {
		return nil, nil, err
	}

	track := make([]float64, 0, len(records))
	times := make([]float64, 0, len(records))
	for _, rec := range records {
		if len(rec) < 2 {
			continue
		}
		t, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, nil, err
		}
		r, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, nil, err
		}
		times = append(times, t)
		track = append(track, r)
	}
	return track, times, nil
}

func (s *Store) Delete(runID string) error {
	return os.RemoveAll(filepath.Join(s.baseDir, runID))
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSamples(path string, samples []sim.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(diagnosticsHeader); err != nil {
		return err
	}
	for _, smp := range samples {
		if err := w.Write(formatSample(smp)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeTrack(path string, dt float64, track []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"time", "radial_offset"}); err != nil {
		return err
	}
	for i, r := range track {
		t := float64(i+1) * dt
		if err := w.Write([]string{formatFloat(t), formatFloat(r)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// readCSV returns all rows after the header.
func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[1:], nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatSample(s sim.Sample) []string {
	return []string{
		strconv.Itoa(s.Step),
		formatFloat(s.Time),
		strconv.Itoa(s.Beams),
		strconv.Itoa(s.Particles),
		strconv.Itoa(s.Losses),
		formatFloat(s.EmittanceR),
		formatFloat(s.EmittanceZ),
		formatFloat(s.CentroidR),
		formatFloat(s.CentroidZ),
	}
}

func parseSample(rec []string) (sim.Sample, error) {
	var s sim.Sample
	ints := []*int{&s.Step, nil, &s.Beams, &s.Particles, &s.Losses}
	floats := []*float64{nil, &s.Time, nil, nil, nil, &s.EmittanceR, &s.EmittanceZ, &s.CentroidR, &s.CentroidZ}

	for i, field := range rec {
		if i < len(ints) && ints[i] != nil {
			v, err := strconv.Atoi(field)
			if err != nil {
				return s, err
			}
			*ints[i] = v
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return s, err
		}
		*floats[i] = v
	}
	return s, nil
}
