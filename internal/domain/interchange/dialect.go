package interchange

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Dialect adds header keywords for a clinic's own spreadsheets, e.g.
//
//	fields:
//	  phone: [contacto, tel]
//	  narrative: [observaciones]
type Dialect struct {
	Fields map[Field][]string `yaml:"fields"`
}

var knownFields = map[Field]bool{
	FieldName: true, FieldBirthDate: true, FieldAge: true, FieldGender: true,
	FieldPhone: true, FieldEmail: true, FieldNarrative: true, FieldVisitDate: true,
}

// ParseDialect decodes a YAML dialect and rejects unknown field names.
func ParseDialect(data []byte) (*Dialect, error) {
	var d Dialect
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse dialect: %w", err)
	}
	for f := range d.Fields {
		if !knownFields[f] {
			return nil, fmt.Errorf("parse dialect: unknown field %q", f)
		}
	}
	return &d, nil
}

// LoadDialect reads a dialect file. An empty path yields a nil dialect.
func LoadDialect(path string) (*Dialect, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dialect %s: %w", path, err)
	}
	return ParseDialect(data)
}
