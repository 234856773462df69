package catalog

import (
	"context"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var _ Client = (*FileClient)(nil)

// FileClient reads the catalog from a YAML file, for deployments without a
// spreadsheet:
//
//	sources:
//	  - https://example.com/rss
//	  - https://t.me/s/some_channel
//	keywords:
//	  Sanction: [sanction, ofac]
type FileClient struct {
	path string
}

func NewFileClient(path string) *FileClient {
	return &FileClient{path: path}
}

type fileCatalog struct {
	Sources  []string            `yaml:"sources"`
	Keywords map[string][]string `yaml:"keywords"`
}

func (c *FileClient) Load(_ context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var raw fileCatalog
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	sources := make([]Source, 0, len(raw.Sources))
	for _, address := range raw.Sources {
		if address == "" {
			continue
		}
		sources = append(sources, NewSource(address))
	}

	keywords := make(Keywords, len(raw.Keywords))
	for category, list := range raw.Keywords {
		keywords[category] = list
	}

	return &Snapshot{
		Sources:  sources,
		Keywords: keywords,
		LoadedAt: time.Now().UTC(),
	}, nil
}
