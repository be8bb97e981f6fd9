package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"
)

var ErrNoSuchCompute = errors.New("storage: compute not recorded")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.runsDir(), 0755)
}

func (s *Store) runsDir() string { return filepath.Join(s.baseDir, "runs") }

type FaultRecord struct {
	Location string `json:"location"`
	Message  string `json:"message"`
	Command  string `json:"command,omitempty"`
	Line     int    `json:"line,omitempty"`
}

type SessionMetadata struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Started        time.Time    `json:"started"`
	Ended          time.Time    `json:"ended"`
	Timesteps      int64        `json:"timesteps"`
	SimulationTime float64      `json:"simulation_time"`
	Atoms          int          `json:"atoms"`
	AtomTypes      int          `json:"atom_types"`
	Resets         int          `json:"resets"`
	Computes       []string     `json:"computes"`
	Samples        int          `json:"samples"`
	Fault          *FaultRecord `json:"fault,omitempty"`
}

// Sample is one pulled compute value set.
type Sample struct {
	Time    float64
	Compute string
	Values  []float64
}

// Save writes metadata.json and computes.csv into a new run directory and
// returns its ID.
func (s *Store) Save(meta SessionMetadata, samples []Sample) (string, error) {
	runID := fmt.Sprintf("%s_%d", meta.Name, time.Now().Unix())
	runDir := filepath.Join(s.runsDir(), runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta.ID = runID
	meta.Samples = len(samples)
	seen := map[string]bool{}
	meta.Computes = meta.Computes[:0:0]
	for _, smp := range samples {
		if !seen[smp.Compute] {
			seen[smp.Compute] = true
			meta.Computes = append(meta.Computes, smp.Compute)
		}
	}
	sort.Strings(meta.Computes)

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "computes.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write([]string{"time", "compute", "index", "value"}); err != nil {
		return "", err
	}
	for _, smp := range samples {
		t := strconv.FormatFloat(smp.Time, 'f', 6, 64)
		for i, v := range smp.Values {
			row := []string{t, smp.Compute, strconv.Itoa(i), strconv.FormatFloat(v, 'g', 8, 64)}
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return runID, nil
}

func (s *Store) List() ([]SessionMetadata, error) {
	entries, err := os.ReadDir(s.runsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []SessionMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]SessionMetadata, 0)
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
	sort.Slice(runs, func(i, j int) bool { return runs[i].Started.Before(runs[j].Started) })
	return runs, nil
}

func (s *Store) Load(runID string) (*SessionMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.runsDir(), runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta SessionMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

// LoadSeries returns the recorded samples of one compute. values[i] holds
// every element pulled at times[i].
func (s *Store) LoadSeries(runID, compute string) (times []float64, values [][]float64, err error) {
	file, err := os.Open(filepath.Join(s.runsDir(), runID, "computes.csv"))
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = 4

	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}

	for _, record := range records[min(1, len(records)):] {
		if record[1] != compute {
			continue
		}
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			continue
		}
		idx, err := strconv.Atoi(record[2])
		if err != nil {
			continue
		}
		v, err := strconv.ParseFloat(record[3], 64)
		if err != nil {
			continue
		}
		if idx == 0 || len(times) == 0 {
			times = append(times, t)
			values = append(values, nil)
		}
		values[len(values)-1] = append(values[len(values)-1], v)
	}
	if len(times) == 0 {
		return nil, nil, fmt.Errorf("%w: %s in %s", ErrNoSuchCompute, compute, runID)
	}
	return times, values, nil
}
