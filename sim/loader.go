package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
)

// LoadConfig reads and validates a configuration from JSON.
func LoadConfig(r io.Reader) (*Config, error) {
	dec := json.NewDecoder(r)
	var c Config
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadConfigFile reads and validates a configuration file.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening configuration: %w", err)
	}
	defer f.Close()
	return LoadConfig(f)
}

// Normalize sorts every collection by ID so that load -> save -> load
// round-trips to a byte-identical form.
func (c *Config) Normalize() {
	sort.Slice(c.TimeModels, func(i, j int) bool { return c.TimeModels[i].ID < c.TimeModels[j].ID })
	sort.Slice(c.States, func(i, j int) bool { return c.States[i].ID < c.States[j].ID })
	sort.Slice(c.Processes, func(i, j int) bool { return c.Processes[i].ID < c.Processes[j].ID })
	sort.Slice(c.Queues, func(i, j int) bool { return c.Queues[i].ID < c.Queues[j].ID })
	sort.Slice(c.Nodes, func(i, j int) bool { return c.Nodes[i].ID < c.Nodes[j].ID })
	sort.Slice(c.Resources, func(i, j int) bool { return c.Resources[i].ID < c.Resources[j].ID })
	sort.Slice(c.Products, func(i, j int) bool { return c.Products[i].ID < c.Products[j].ID })
	sort.Slice(c.Sinks, func(i, j int) bool { return c.Sinks[i].ID < c.Sinks[j].ID })
	sort.Slice(c.Sources, func(i, j int) bool { return c.Sources[i].ID < c.Sources[j].ID })
	sort.Slice(c.Auxiliaries, func(i, j int) bool { return c.Auxiliaries[i].ID < c.Auxiliaries[j].ID })
}

// Save writes the configuration as indented JSON in normalized form.
func (c *Config) Save(w io.Writer) error {
	c.Normalize()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

// SaveFile writes the configuration to a file.
func (c *Config) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating configuration file: %w", err)
	}
	defer f.Close()
	return c.Save(f)
}
