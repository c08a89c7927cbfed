package machine

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/KevinKickass/OpenGCodeCore/internal/function"
	"github.com/KevinKickass/OpenGCodeCore/internal/types"
	"gopkg.in/yaml.v3"
)

var definitionExts = []string{"", ".yaml", ".yml", ".json"}

// Loader reads machine definitions from YAML or JSON files. Includes are
// resolved relative to the including file first, then through the search
// paths.
type Loader struct {
	cache       sync.Map
	validator   *SchemaValidator
	searchPaths []string
}

func NewLoader(searchPaths []string) (*Loader, error) {
	validator, err := NewSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	return &Loader{
		validator:   validator,
		searchPaths: searchPaths,
	}, nil
}

// Load reads path and everything it includes.
func (l *Loader) Load(path string) (*Definition, error) {
	// Cache-Check
	if cached, ok := l.cache.Load(path); ok {
		return cached.(*Definition), nil
	}

	def, err := l.load(path, "", map[string]bool{})
	if err != nil {
		return nil, err
	}

	l.cache.Store(path, def)
	return def, nil
}

// Parse decodes a single document without following includes.
func (l *Loader) Parse(data []byte, source string) (*Definition, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, types.Wrap(types.KindConfiguration, source, fmt.Errorf("invalid YAML: %w", err))
	}
	if raw == nil {
		return nil, types.Errorf(types.KindConfiguration, source, "empty machine definition")
	}

	doc, err := json.Marshal(raw)
	if err != nil {
		return nil, types.Wrap(types.KindConfiguration, source, err)
	}
	if err := l.validator.Validate(doc); err != nil {
		return nil, types.Wrap(types.KindConfiguration, source, err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, types.Wrap(types.KindConfiguration, source, fmt.Errorf("failed to decode definition: %w", err))
	}
	return &def, nil
}

func (l *Loader) ClearCache() {
	l.cache.Range(func(key, value any) bool {
		l.cache.Delete(key)
		return true
	})
}

func (l *Loader) load(path, dir string, visiting map[string]bool) (*Definition, error) {
	fullPath, data, err := l.read(path, dir)
	if err != nil {
		return nil, err
	}
	if visiting[fullPath] {
		return nil, types.Errorf(types.KindConfiguration, fullPath, "include cycle detected")
	}
	visiting[fullPath] = true
	defer delete(visiting, fullPath)

	def, err := l.Parse(data, fullPath)
	if err != nil {
		return nil, err
	}

	for _, inc := range def.Include {
		lib, err := l.load(inc, filepath.Dir(fullPath), visiting)
		if err != nil {
			return nil, fmt.Errorf("include %s from %s: %w", inc, fullPath, err)
		}
		if err := merge(def, lib, fullPath); err != nil {
			return nil, err
		}
	}
	return def, nil
}

func (l *Loader) read(path, dir string) (string, []byte, error) {
	var bases []string
	if filepath.IsAbs(path) {
		bases = []string{path}
	} else {
		if dir != "" {
			bases = append(bases, filepath.Join(dir, path))
		}
		for _, sp := range l.searchPaths {
			bases = append(bases, filepath.Join(sp, path))
		}
		if dir == "" {
			bases = append(bases, path)
		}
	}

	for _, base := range bases {
		for _, ext := range definitionExts {
			if ext != "" && filepath.Ext(base) != "" {
				continue
			}
			candidate := base + ext
			data, err := os.ReadFile(candidate)
			if err == nil {
				abs, absErr := filepath.Abs(candidate)
				if absErr != nil {
					abs = candidate
				}
				return abs, data, nil
			}
			if !errors.Is(err, os.ErrNotExist) {
				return "", nil, types.Wrap(types.KindConfiguration, candidate, err)
			}
		}
	}

	return "", nil, types.Errorf(types.KindConfiguration, "load definition",
		"machine definition not found: %s (searched in: %v)", path, bases)
}

// merge adds the components and functions of lib to def. Names must not
// collide.
func merge(def, lib *Definition, source string) error {
	if len(lib.Components) > 0 && def.Components == nil {
		def.Components = make(map[string]map[string]any, len(lib.Components))
	}
	for _, id := range lib.ComponentIDs() {
		if _, exists := def.Components[id]; exists {
			return types.Errorf(types.KindConfiguration, source, "component %s defined more than once", id)
		}
		def.Components[id] = lib.Components[id]
	}

	if len(lib.Functions) > 0 && def.Functions == nil {
		def.Functions = make(map[string]function.Definition, len(lib.Functions))
	}
	for _, name := range lib.FunctionNames() {
		if _, exists := def.Functions[name]; exists {
			return types.Errorf(types.KindConfiguration, source, "function %s defined more than once", name)
		}
		def.Functions[name] = lib.Functions[name]
	}
	return nil
}
