package config

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadYAML decodes a YAML file into v. Unknown keys are rejected so typos in
// hand-edited files surface at startup. Results are not cached.
func LoadYAML[T any](path string, v *T) error {
	if v == nil {
		return ErrNilPointer
	}
	if path == "" {
		return ErrMissingPath
	}

	f, err := os.Open(path)
	if err != nil {
		return errors.Join(ErrReadingFile, err)
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}
