package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/accelsim/internal/config"
	"github.com/san-kum/accelsim/internal/sim"
)

type ExportData struct {
	Metadata RunMetadata  `json:"metadata"`
	Samples  []sim.Sample `json:"samples"`
	Track    []float64    `json:"track,omitempty"`
}

func NewExport(name string, cfg *config.Config, result *sim.Result) ExportData {
	return ExportData{
		Metadata: NewMetadata(name, cfg, result),
		Samples:  result.Samples,
		Track:    result.Track,
	}
}

func ExportJSON(path, name string, cfg *config.Config, result *sim.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, name, cfg, result)
}

func WriteJSON(w io.Writer, name string, cfg *config.Config, result *sim.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(NewExport(name, cfg, result))
}

// Export writes a stored run as ExportData.
func (s *Store) Export(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	samples, err := s.LoadSamples(runID)
	if err != nil {
		return err
	}
	track, _, err := s.LoadTrack(runID)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ExportData{Metadata: *meta, Samples: samples, Track: track})
}
