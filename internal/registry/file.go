package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/sensor-threshold-service/internal/domain"
)

// Source builds a fresh registry from external configuration.
type Source interface {
	Load(ctx context.Context) (*Registry, error)
	Name() string
}

// fileDocument is the on-disk layout of a sensor table:
//
//	types:
//	  - name: O2 Concentration
//	    min_critical_lower: 0
//	    ...
//	sensors:
//	  - topic: board1/o2
//	    type: O2 Concentration
//	channels:
//	  - topic: chatbot/user
//	    description: Messages from the GUI
type fileDocument struct {
	Types    []domain.Threshold `yaml:"types"`
	Sensors  []fileSensor       `yaml:"sensors"`
	Channels []fileChannel      `yaml:"channels"`
}

type fileSensor struct {
	Topic string `yaml:"topic"`
	Type  string `yaml:"type"`
}

type fileChannel struct {
	Topic       string `yaml:"topic"`
	Description string `yaml:"description"`
}

// FileSource loads the registry from a YAML file.
type FileSource struct {
	Path string
}

// NewFileSource creates a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Name() string { return "file" }

// Load reads and parses the file. The returned registry is not yet frozen.
func (s *FileSource) Load(_ context.Context) (*Registry, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("read sensor config: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Path, err)
	}
	return r, nil
}

// Parse decodes a YAML sensor table. Unknown fields, duplicate type names,
// references to undefined types and duplicate topics are all errors.
func Parse(data []byte) (*Registry, error) {
	var doc fileDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse sensor config: %w", err)
	}

	types := make(map[string]domain.Threshold, len(doc.Types))
	for _, th := range doc.Types {
		if err := th.Validate(); err != nil {
			return nil, err
		}
		if _, dup := types[th.Name]; dup {
			return nil, fmt.Errorf("duplicate sensor type %q", th.Name)
		}
		types[th.Name] = th
	}

	r := New()
	for _, s := range doc.Sensors {
		th, ok := types[s.Type]
		if !ok {
			return nil, fmt.Errorf("sensor %q references undefined type %q", s.Topic, s.Type)
		}
		if err := r.Register(s.Topic, th); err != nil {
			return nil, err
		}
	}
	for _, c := range doc.Channels {
		if err := r.RegisterChannel(c.Topic, c.Description); err != nil {
			return nil, err
		}
	}
	return r, nil
}
