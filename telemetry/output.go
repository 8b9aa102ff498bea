package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/tritium/config"
	"github.com/pthm-cable/tritium/engine"
)

// TrajectoryRecord is one box inventory sample in trajectories.csv.
type TrajectoryRecord struct {
	Run              int     `csv:"run"`
	Label            string  `csv:"label"`
	TBR              float64 `csv:"tbr"`
	StartupInventory float64 `csv:"startup_inventory"`
	Step             int     `csv:"step"`
	Time             float64 `csv:"t"`
	Box              string  `csv:"box"`
	Inventory        float64 `csv:"inventory"`
}

// csvStream appends records to one CSV file, writing the header once.
type csvStream struct {
	name          string
	file          *os.File
	headerWritten bool
}

func openStream(dir, name string) (*csvStream, error) {
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", name, err)
	}
	return &csvStream{name: name, file: f}, nil
}

// write marshals records, which must be a slice of csv-tagged structs.
func (s *csvStream) write(records any) error {
	if !s.headerWritten {
		// First write includes headers
		if err := gocsv.Marshal(records, s.file); err != nil {
			return fmt.Errorf("writing %s: %w", s.name, err)
		}
		s.headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, s.file); err != nil {
		return fmt.Errorf("writing %s: %w", s.name, err)
	}
	return nil
}

func (s *csvStream) close() error {
	if s == nil || s.file == nil {
		return nil
	}
	return s.file.Close()
}

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir          string
	trajectories *csvStream
	summary      *csvStream
	events       *csvStream
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	streams := []struct {
		dst  **csvStream
		name string
	}{
		{&om.trajectories, "trajectories.csv"},
		{&om.summary, "summary.csv"},
		{&om.events, "events.csv"},
	}
	for _, s := range streams {
		stream, err := openStream(dir, s.name)
		if err != nil {
			om.Close()
			return nil, err
		}
		*s.dst = stream
	}

	return om, nil
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteTrajectories writes every recorded sample of a completed run to trajectories.csv.
func (om *OutputManager) WriteTrajectories(info RunInfo, sys *engine.System) error {
	if om == nil {
		return nil
	}

	times := sys.Times()
	boxes := sys.Boxes()
	records := make([]TrajectoryRecord, 0, len(times)*len(boxes))
	for k, t := range times {
		for _, b := range boxes {
			records = append(records, TrajectoryRecord{
				Run:              info.Run,
				Label:            info.Label,
				TBR:              info.TBR,
				StartupInventory: info.StartupInventory,
				Step:             k,
				Time:             t,
				Box:              b.Name(),
				Inventory:        b.Inventories()[k],
			})
		}
	}
	if len(records) == 0 {
		return nil
	}
	return om.trajectories.write(records)
}

// WriteSummary writes per-box statistics to summary.csv.
func (om *OutputManager) WriteSummary(stats []BoxStats) error {
	if om == nil || len(stats) == 0 {
		return nil
	}
	return om.summary.write(stats)
}

// WriteEvents writes trajectory events to events.csv.
func (om *OutputManager) WriteEvents(events []Event) error {
	if om == nil || len(events) == 0 {
		return nil
	}
	return om.events.write(events)
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, s := range []*csvStream{om.trajectories, om.summary, om.events} {
		if err := s.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
