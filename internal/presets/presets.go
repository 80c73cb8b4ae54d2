// Package presets holds the processor and flag profiles used to build job steps.
package presets

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/kozaktomas/fusion-batch/internal/facefusion"
	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var presetsYAML []byte

// ErrUnknownPreset is returned when a preset name is not in the catalog.
var ErrUnknownPreset = errors.New("unknown preset")

// EditPreset is the preset an edit prefix rule sends matching sources to.
const EditPreset = "swap-edit"

// Preset is a named set of processors and extra flags.
type Preset struct {
	Name        string              `yaml:"-" json:"name"`
	Description string              `yaml:"description" json:"description,omitempty"`
	Processors  []string            `yaml:"processors" json:"processors"`
	Options     []facefusion.Option `yaml:"options" json:"options,omitempty"`
	PrefixRules []PrefixRule        `yaml:"prefix_rules" json:"prefix_rules,omitempty"`
}

// PrefixRule switches to another preset for source files whose name starts with Prefix.
type PrefixRule struct {
	Prefix string `yaml:"prefix" json:"prefix"`
	Preset string `yaml:"preset" json:"preset"`
}

// Step builds a job step from the preset.
func (p Preset) Step(sources []string, target, output string) facefusion.Step {
	return facefusion.Step{
		Sources:    append([]string(nil), sources...),
		Target:     target,
		Output:     output,
		Processors: append([]string(nil), p.Processors...),
		Options:    append([]facefusion.Option(nil), p.Options...),
	}
}

type file struct {
	Presets map[string]Preset `yaml:"presets"`
}

// Catalog is the set of known presets.
type Catalog struct {
	presets map[string]Preset
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := parse(presetsYAML)
	if err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded presets.yaml: " + err.Error())
	}
	return c
}

// Load returns the embedded catalog merged with the user file at path, if any.
// User presets replace built-ins of the same name.
func Load(path string) (*Catalog, error) {
	c := Default()
	if path == "" {
		return c, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading presets file %s: %w", path, err)
	}
	user, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing presets file %s: %w", path, err)
	}
	for name, p := range user.presets {
		c.presets[name] = p
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("unmarshal presets: %w", err)
	}
	c := &Catalog{presets: make(map[string]Preset, len(f.Presets))}
	for name, p := range f.Presets {
		p.Name = name
		c.presets[name] = p
	}
	return c, nil
}

// validate checks that every preset has processors and every prefix rule
// points at a known preset.
func (c *Catalog) validate() error {
	for _, name := range c.Names() {
		p := c.presets[name]
		if len(p.Processors) == 0 {
			return fmt.Errorf("preset %q has no processors", name)
		}
		for _, rule := range p.PrefixRules {
			if _, ok := c.presets[rule.Preset]; !ok {
				return fmt.Errorf("preset %q prefix rule %q: %w %q", name, rule.Prefix, ErrUnknownPreset, rule.Preset)
			}
		}
	}
	return nil
}

// Names returns the preset names in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.presets))
	for name := range c.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all presets sorted by name.
func (c *Catalog) List() []Preset {
	list := make([]Preset, 0, len(c.presets))
	for _, name := range c.Names() {
		list = append(list, c.presets[name])
	}
	return list
}

// Get returns the preset with the given name.
func (c *Catalog) Get(name string) (Preset, error) {
	p, ok := c.presets[name]
	if !ok {
		return Preset{}, fmt.Errorf("%w %q (available: %s)", ErrUnknownPreset, name, strings.Join(c.Names(), ", "))
	}
	return p, nil
}

// Resolve returns the preset to use for a source file: the first prefix rule of
// the named preset matching sourceName wins, otherwise the named preset itself.
func (c *Catalog) Resolve(name, sourceName string) (Preset, error) {
	p, err := c.Get(name)
	if err != nil {
		return Preset{}, err
	}
	for _, rule := range p.PrefixRules {
		if rule.Prefix != "" && strings.HasPrefix(sourceName, rule.Prefix) {
			return c.Get(rule.Preset)
		}
	}
	return p, nil
}

// WithPrefixRule returns a copy of the catalog where preset name gains a rule
// sending sources starting with prefix to target.
func (c *Catalog) WithPrefixRule(name, prefix, target string) (*Catalog, error) {
	p, err := c.Get(name)
	if err != nil {
		return nil, err
	}
	if _, err := c.Get(target); err != nil {
		return nil, err
	}
	clone := &Catalog{presets: make(map[string]Preset, len(c.presets))}
	for k, v := range c.presets {
		clone.presets[k] = v
	}
	p.PrefixRules = append([]PrefixRule{{Prefix: prefix, Preset: target}}, p.PrefixRules...)
	clone.presets[name] = p
	return clone, nil
}
