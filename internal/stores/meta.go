package stores

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Meta is the scope-level metadata persisted in meta.yaml. LastAccessed
// moves on every read or write through the handle.
type Meta struct {
	Created      time.Time `yaml:"created"`
	LastAccessed time.Time `yaml:"last_accessed"`
	Description  string    `yaml:"description,omitempty"`
}

// Info summarizes one scope for listings. SizeBytes covers the cache
// database file on disk.
type Info struct {
	Scope        string    `json:"scope"`
	Created      time.Time `json:"created"`
	LastAccessed time.Time `json:"last_accessed"`
	Description  string    `json:"description,omitempty"`
	SizeBytes    int64     `json:"size_bytes"`
}

// NewMeta creates metadata for a newly provisioned scope.
func NewMeta(description string) *Meta {
	now := time.Now().UTC()
	return &Meta{Created: now, LastAccessed: now, Description: description}
}

// LoadMeta reads and parses a meta.yaml file.
func LoadMeta(path string) (*Meta, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var meta Meta
	if err := yaml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &meta, nil
}

// SaveMeta writes metadata back to a meta.yaml file.
func SaveMeta(path string, meta *Meta) error {
	data, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal scope metadata: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
