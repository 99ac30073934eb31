// Package hierarchy reads the field, plant, and leaf manifest that lists the
// videos to synchronize.
package hierarchy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"fieldsync/internal/config"
	"fieldsync/internal/entry"
	"fieldsync/internal/services"
	"fieldsync/internal/syncer"
)

// Param keys added to every media item so the server can place the video in
// the hierarchy.
const (
	ParamField = "field"
	ParamPlant = "plant"
	ParamLeaf  = "leaf"
)

// Manifest is the root of the hierarchy file.
type Manifest struct {
	Fields []Field `yaml:"fields"`

	dir string
}

// Field groups plants.
type Field struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params"`
	Plants []Plant        `yaml:"plants"`
}

// Plant groups leaves.
type Plant struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:"params"`
	Leaves []Leaf         `yaml:"leaves"`
}

// Leaf is one annotated leaf; Video is empty until a clip is recorded.
type Leaf struct {
	Name   string         `yaml:"name"`
	Video  string         `yaml:"video"`
	Params map[string]any `yaml:"params"`
}

// Load reads a YAML or JSON manifest from path.
func Load(path string) (*Manifest, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, services.Wrap(services.ErrConfiguration, "manifest", "load", "no manifest path; pass --manifest or set paths.manifest", nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		marker := services.ErrValidation
		if os.IsNotExist(err) {
			marker = services.ErrNotFound
		}
		return nil, services.Wrap(marker, "manifest", "read", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "manifest", "parse", path, err)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve manifest directory: %w", err)
	}
	m.dir = abs
	return m, nil
}

// Parse decodes manifest bytes. Relative video paths stay relative until the
// manifest is given a directory by Load.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// MediaItems flattens every leaf with a video into media items in manifest
// order. Params layer field, plant, and leaf params with the hierarchy names
// on top.
func (m *Manifest) MediaItems() ([]syncer.MediaItem, error) {
	var items []syncer.MediaItem
	seen := make(map[string]string)
	for _, field := range m.Fields {
		for _, plant := range field.Plants {
			for _, leaf := range plant.Leaves {
				video := strings.TrimSpace(leaf.Video)
				if video == "" {
					continue
				}
				video = m.resolve(video)
				id := entry.IDFromPath(video)
				if prev, dup := seen[id]; dup {
					return nil, services.Wrap(services.ErrValidation, "manifest", "media items",
						fmt.Sprintf("videos %s and %s share id %s", prev, video, id), nil)
				}
				seen[id] = video

				params := entry.MergeParams(entry.Params(field.Params), plant.Params)
				params = entry.MergeParams(params, leaf.Params)
				params = entry.MergeParams(params, map[string]any{
					ParamField: field.Name,
					ParamPlant: plant.Name,
					ParamLeaf:  leaf.Name,
				})
				items = append(items, syncer.MediaItem{Path: video, Params: params})
			}
		}
	}
	return items, nil
}

// Counts returns the number of fields, plants, leaves, and leaves with video.
func (m *Manifest) Counts() (fields, plants, leaves, videos int) {
	fields = len(m.Fields)
	for _, field := range m.Fields {
		plants += len(field.Plants)
		for _, plant := range field.Plants {
			leaves += len(plant.Leaves)
			for _, leaf := range plant.Leaves {
				if strings.TrimSpace(leaf.Video) != "" {
					videos++
				}
			}
		}
	}
	return fields, plants, leaves, videos
}

func (m *Manifest) resolve(video string) string {
	if strings.HasPrefix(video, "~") {
		if expanded, err := config.ExpandPath(video); err == nil {
			return expanded
		}
	}
	if filepath.IsAbs(video) || m.dir == "" {
		return filepath.Clean(video)
	}
	return filepath.Join(m.dir, video)
}
