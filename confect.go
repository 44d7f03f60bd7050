// Package confect wires the configuration composition engine into an Fx
// application. Module composes a config from a directory of YAML files and
// provides the merged tree; Provider decodes a section of it into a typed
// struct, honoring the Validator and Defaulter extension points.
package confect

import (
	"fmt"
	"log/slog"

	"github.com/goccy/go-yaml"

	"github.com/0xalexb/confect/compose"
	"github.com/0xalexb/confect/value"
)

// Validator defines an interface for validating configuration structures.
type Validator interface {
	Validate() error
}

// Defaulter defines an interface for setting default values in configuration structures.
type Defaulter interface {
	SetDefaults() (changed bool)
}

// Provider returns a constructor that decodes a section of the composed
// config into target.
//
// The path parameter addresses a subtree of the composed config using dot
// (.) as the separator for nested keys. For example:
//   - "db" decodes config["db"]
//   - "services.api" navigates two levels deep
//   - "" (empty path) decodes the entire tree
//
// If target implements Defaulter, defaults are applied after decoding; if
// it implements Validator, validation runs last.
func Provider[T any](target *T, path string) func(*compose.Result) (*T, error) {
	return func(res *compose.Result) (*T, error) {
		err := decodeAt(res.Config, target, path)
		if err != nil {
			return nil, err
		}

		targetDefaulter, isDefaulter := any(target).(Defaulter)
		if isDefaulter {
			changed := targetDefaulter.SetDefaults()
			if changed {
				slog.Info("defaults applied", slog.String("path", path))
			}
		}

		targetValidatable, isValidatable := any(target).(Validator)
		if isValidatable {
			err := targetValidatable.Validate()
			if err != nil {
				return nil, fmt.Errorf("validating error: %w", err)
			}
		}

		return target, nil
	}
}

// decodeAt serializes the subtree at path and unmarshals it into target.
func decodeAt(config *value.Dict, target any, path string) error {
	v := value.DictVal(config)

	if path != "" {
		found, ok := value.GetPath(config, path)
		if !ok {
			return fmt.Errorf("config path '%s' not found", path)
		}

		v = found
	}

	data, err := value.MarshalYAML(v)
	if err != nil {
		return fmt.Errorf("serializing error: %w", err)
	}

	err = yaml.Unmarshal(data, target)
	if err != nil {
		return fmt.Errorf("parsing error: %w", err)
	}

	return nil
}
