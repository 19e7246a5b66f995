// Package seed reads exam catalogs written in YAML.
package seed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/stemsi/exstem-proctor/internal/model"
	"gopkg.in/yaml.v3"
)

// Catalog is the top-level document of an exam seed file.
type Catalog struct {
	Exams []model.ExamDefinition `yaml:"exams"`
}

// Parse decodes and validates a catalog. Unknown keys are rejected so a
// typo in a seed file fails loudly instead of dropping data.
func Parse(data []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return &c, nil
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	seen := make(map[string]bool, len(c.Exams))
	for i := range c.Exams {
		e := &c.Exams[i]
		if seen[e.Name] {
			return nil, fmt.Errorf("%w: exam %q listed twice", model.ErrInvalidExam, e.Name)
		}
		seen[e.Name] = true
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// Load reads and parses the catalog at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}
