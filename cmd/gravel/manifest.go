package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/graveldb/gravel/schema"
)

// manifest is the YAML shape the CLI reads. Relationships are not part of
// it; they only matter to code that loads records, and the CLI never does.
type manifest struct {
	Version int             `yaml:"version"`
	Tables  []manifestTable `yaml:"tables"`
}

type manifestTable struct {
	Kind        string            `yaml:"kind"`
	Table       string            `yaml:"table"`
	Columns     []manifestColumn  `yaml:"columns"`
	ForeignKeys map[string]string `yaml:"foreign_keys"`
}

type manifestColumn struct {
	Name          string `yaml:"name"`
	Type          string `yaml:"type"`
	PrimaryKey    bool   `yaml:"primary_key"`
	AutoIncrement bool   `yaml:"auto_increment"`
	Nullable      bool   `yaml:"nullable"`
	Default       any    `yaml:"default"`
}

func loadManifest(path string) (*manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	if m.Version <= 0 {
		return nil, fmt.Errorf("%s: version must be positive", path)
	}
	if len(m.Tables) == 0 {
		return nil, fmt.Errorf("%s: no tables declared", path)
	}
	return &m, nil
}

func columnType(s string) (schema.ColumnType, error) {
	switch s {
	case "integer", "int":
		return schema.TypeInteger, nil
	case "real", "float":
		return schema.TypeReal, nil
	case "text", "string":
		return schema.TypeText, nil
	case "blob", "bytes":
		return schema.TypeBlob, nil
	}
	return 0, fmt.Errorf("unknown column type %q", s)
}

// buildRegistry turns the manifest into registered metadata. Every kind gets
// the dynamic map codec since no Go structs exist for manifest-declared
// entities.
func buildRegistry(m *manifest) (*schema.Registry, error) {
	reg := schema.NewRegistry()
	for _, mt := range m.Tables {
		if mt.Kind == "" || mt.Table == "" {
			return nil, fmt.Errorf("table entry needs both kind and table")
		}
		if len(mt.Columns) == 0 {
			return nil, fmt.Errorf("table %s: no columns declared", mt.Table)
		}

		columns := make([]*schema.Column, 0, len(mt.Columns))
		for _, mc := range mt.Columns {
			if mc.Name == "" {
				return nil, fmt.Errorf("table %s: column without a name", mt.Table)
			}
			typ, err := columnType(mc.Type)
			if err != nil {
				return nil, fmt.Errorf("table %s, column %s: %w", mt.Table, mc.Name, err)
			}
			columns = append(columns, &schema.Column{
				Name:            mc.Name,
				Type:            typ,
				IsPrimaryKey:    mc.PrimaryKey,
				IsAutoIncrement: mc.AutoIncrement,
				IsNullable:      mc.Nullable,
				DefaultValue:    mc.Default,
			})
		}

		t := schema.NewTable(mt.Kind, mt.Table, columns...)
		for col, ref := range mt.ForeignKeys {
			t.WithForeignKey(col, ref)
		}
		reg.Register(t)
	}
	return reg, nil
}
