package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/redo/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Step is one entry of a workflow file: a command or a nested group.
type Step struct {
	Name    string            `mapstructure:"name"`
	Command string            `mapstructure:"command"`
	Args    []string          `mapstructure:"args"`
	Dir     string            `mapstructure:"dir"`
	Env     map[string]string `mapstructure:"env"`

	// Inputs and Outputs are file paths relative to the workflow directory.
	Inputs  []string `mapstructure:"inputs"`
	Outputs []string `mapstructure:"outputs"`
	// Params are tracked values exported to the command as REDO_PARAM_<NAME>.
	Params map[string]any `mapstructure:"params"`

	// RequireChangedOutputs makes a run successful only if it touched every output.
	RequireChangedOutputs bool `mapstructure:"require_changed_outputs"`

	Group []Step `mapstructure:"group"`
}

// IsGroup reports whether the step nests other steps.
func (s Step) IsGroup() bool {
	return s.Group != nil
}

// File is a parsed workflow definition.
type File struct {
	Name  string `mapstructure:"name"`
	Tasks []Step `mapstructure:"tasks"`
}

// Load reads a workflow file (YAML or JSON).
// Without an explicit name the file name without extension is used.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow: %w", err)
	}

	var f *File
	if strings.EqualFold(filepath.Ext(path), ".json") {
		f, err = parse(data, json.Unmarshal)
	} else {
		f, err = parse(data, yaml.Unmarshal)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := domain.ValidateName(f.Name); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a YAML workflow definition.
func Parse(data []byte) (*File, error) {
	return parse(data, yaml.Unmarshal)
}

func parse(data []byte, unmarshal func([]byte, any) error) (*File, error) {
	var raw map[string]any
	if err := unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}

	var f File
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &f,
		TagName:          "mapstructure",
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConfiguration, err)
	}
	if err := validate(f.Tasks, ""); err != nil {
		return nil, err
	}
	return &f, nil
}

func validate(steps []Step, at string) error {
	for i, s := range steps {
		where := fmt.Sprintf("%s[%d]", at, i)
		switch {
		case s.IsGroup() && s.Command != "":
			return fmt.Errorf("%w: step %s has both command and group", domain.ErrConfiguration, where)
		case s.IsGroup():
			if err := validate(s.Group, where); err != nil {
				return err
			}
		case s.Command == "":
			return fmt.Errorf("%w: step %s has no command", domain.ErrConfiguration, where)
		case s.Name == "":
			return fmt.Errorf("%w: step %s has no name", domain.ErrConfiguration, where)
		}
	}
	return nil
}
