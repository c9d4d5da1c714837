// Package seriesfile reads and writes the JSON hand-off format between the
// fetch and load stages: an array of {"reference_date", "value"} objects.
package seriesfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"macrocollector/internal/model"
)

func Path(dir, name string) string {
	return filepath.Join(dir, name+".json")
}

func Write(path string, s model.Series) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create series dir: %w", err)
	}

	observations := s.Observations
	if observations == nil {
		observations = []model.Observation{}
	}

	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(observations); err != nil {
		_ = file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode %s: %w", s.Name, err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func Read(path, name string) (model.Series, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Series{}, err
	}

	var observations []model.Observation
	if err := json.Unmarshal(data, &observations); err != nil {
		return model.Series{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if observations == nil {
		observations = []model.Observation{}
	}
	return model.Series{Name: name, Observations: observations}, nil
}
