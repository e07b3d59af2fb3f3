// Package settings loads the optional tool-level YAML settings: download
// limits, archive compression, and release publishing targets.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/pienkuu/pienkuu/internal/fetch"
	"github.com/pienkuu/pienkuu/internal/target"
)

const (
	defaultRetain         = 5
	defaultMaxConcurrency = 4
)

// Settings is the root of the settings document.
type Settings struct {
	Download Download `yaml:"download"`
	Archive  Archive  `yaml:"archive"`
	Publish  Publish  `yaml:"publish"`
}

// Download configures the download action.
type Download struct {
	MaxRedirects   int    `yaml:"max_redirects"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
}

// Archive configures serialization of the output archive.
type Archive struct {
	// CompressionLevel is a pointer so an explicit 0 (store) differs from
	// "not set".
	CompressionLevel *int `yaml:"compression_level"`
}

// Publish configures uploading releases to object storage.
type Publish struct {
	Retain         int            `yaml:"retain"`
	MaxConcurrency int            `yaml:"max_concurrency"`
	Targets        []TargetConfig `yaml:"targets"`
}

// TargetConfig describes one storage target.
type TargetConfig struct {
	Name            string `yaml:"name"`
	Type            string `yaml:"type"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	StorageAccount  string `yaml:"storage_account"`
	ContainerName   string `yaml:"container_name"`
	KMSKeyID        string `yaml:"kms_key_id"`
	KMSKeyName      string `yaml:"kms_key_name"`
	EncryptionScope string `yaml:"encryption_scope"`
	MaxRetries      int    `yaml:"max_retries"`
	RetryBackoff    string `yaml:"retry_backoff"`
}

// Default returns the settings used when no file is given.
func Default() *Settings {
	s := &Settings{}
	s.applyDefaults()
	return s
}

// Load reads and validates the settings file at path.
func Load(fsys afero.Fs, path string) (*Settings, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("settings: %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a settings document. Unknown keys are rejected.
func Parse(data []byte) (*Settings, error) {
	s := &Settings{}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}

	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Settings) applyDefaults() {
	if s.Download.MaxRedirects == 0 {
		s.Download.MaxRedirects = fetch.DefaultMaxRedirects
	}
	if s.Archive.CompressionLevel == nil {
		level := flate.DefaultCompression
		s.Archive.CompressionLevel = &level
	}
	if s.Publish.Retain == 0 {
		s.Publish.Retain = defaultRetain
	}
	if s.Publish.MaxConcurrency == 0 {
		s.Publish.MaxConcurrency = defaultMaxConcurrency
	}
}

// Validate checks value ranges and target definitions.
func (s *Settings) Validate() error {
	if s.Download.MaxRedirects < 0 {
		return fmt.Errorf("download.max_redirects must not be negative")
	}
	if s.Download.TimeoutSeconds < 0 {
		return fmt.Errorf("download.timeout_seconds must not be negative")
	}
	if lvl := *s.Archive.CompressionLevel; lvl < flate.HuffmanOnly || lvl > flate.BestCompression {
		return fmt.Errorf("archive.compression_level %d out of range [%d, %d]", lvl, flate.HuffmanOnly, flate.BestCompression)
	}
	if s.Publish.Retain < 1 {
		return fmt.Errorf("publish.retain must be at least 1")
	}
	if s.Publish.MaxConcurrency < 1 {
		return fmt.Errorf("publish.max_concurrency must be at least 1")
	}

	seen := make(map[string]bool, len(s.Publish.Targets))
	for i, t := range s.Publish.Targets {
		if t.Name == "" {
			return fmt.Errorf("publish.targets[%d]: name is required", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("publish.targets[%d]: duplicate name %q", i, t.Name)
		}
		seen[t.Name] = true

		switch t.Type {
		case "s3", "gcs":
			if t.Bucket == "" {
				return fmt.Errorf("publish.targets[%d] %q: bucket is required for %s", i, t.Name, t.Type)
			}
		case "azure":
			if t.StorageAccount == "" || t.ContainerName == "" {
				return fmt.Errorf("publish.targets[%d] %q: storage_account and container_name are required for azure", i, t.Name)
			}
		case "memory":
		default:
			return fmt.Errorf("publish.targets[%d] %q: unsupported type %q (must be s3, gcs, azure, or memory)", i, t.Name, t.Type)
		}

		switch t.RetryBackoff {
		case "", "exponential", "linear":
		default:
			return fmt.Errorf("publish.targets[%d] %q: retry_backoff must be exponential or linear", i, t.Name)
		}
	}
	return nil
}

// FetchConfig returns the download client configuration.
func (s *Settings) FetchConfig() fetch.Config {
	return fetch.Config{
		MaxRedirects:   s.Download.MaxRedirects,
		TimeoutSeconds: s.Download.TimeoutSeconds,
		UserAgent:      s.Download.UserAgent,
	}
}

// TargetConfigs converts the publish targets to target.Config values.
func (s *Settings) TargetConfigs() []target.Config {
	out := make([]target.Config, 0, len(s.Publish.Targets))
	for _, t := range s.Publish.Targets {
		out = append(out, target.Config{
			Name:            t.Name,
			Type:            t.Type,
			Bucket:          t.Bucket,
			Region:          t.Region,
			Prefix:          t.Prefix,
			StorageAccount:  t.StorageAccount,
			ContainerName:   t.ContainerName,
			KMSKeyID:        t.KMSKeyID,
			KMSKeyName:      t.KMSKeyName,
			EncryptionScope: t.EncryptionScope,
			MaxRetries:      t.MaxRetries,
			RetryBackoff:    t.RetryBackoff,
		})
	}
	return out
}
