// Package schemafile loads schema definitions from TOML or YAML files.
//
// A file declares one or more schemas:
//
//	[[schema]]
//	name = "Post"
//	allow_inheritance = true
//
//	  [[schema.field]]
//	  name = "title"
//	  kind = "string"
//	  required = true
//	  max_length = 120
//
//	  [[schema.field]]
//	  name = "tags"
//	  kind = "list"
//	  elem = { kind = "string" }
//
// YAML files use the same keys under "schemas" and "fields".
//
// Schemas from every matched file are defined together and then resolved,
// so references may cross files.
package schemafile

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/alfredjeanlab/odm/internal/model"
)

// ErrNoFiles is returned when no file matches the given patterns.
var ErrNoFiles = errors.New("no schema files matched")

// File is the decoded content of one schema file.
type File struct {
	Schemas []Schema `toml:"schema" yaml:"schemas"`
}

// Schema declares one document schema.
type Schema struct {
	Name             string  `toml:"name" yaml:"name"`
	Extends          string  `toml:"extends" yaml:"extends"`
	Collection       string  `toml:"collection" yaml:"collection"`
	Embedded         bool    `toml:"embedded" yaml:"embedded"`
	AllowInheritance bool    `toml:"allow_inheritance" yaml:"allow_inheritance"`
	Dynamic          bool    `toml:"dynamic" yaml:"dynamic"`
	Fields           []Field `toml:"field" yaml:"fields"`
}

// Field declares one field. Elem describes list, set, map and enum elements.
type Field struct {
	Name       string `toml:"name" yaml:"name"`
	Kind       string `toml:"kind" yaml:"kind"`
	Required   bool   `toml:"required" yaml:"required"`
	PrimaryKey bool   `toml:"primary_key" yaml:"primary_key"`
	Default    any    `toml:"default" yaml:"default"`
	MinLength  *int   `toml:"min_length" yaml:"min_length"`
	MaxLength  *int   `toml:"max_length" yaml:"max_length"`
	Pattern    string `toml:"pattern" yaml:"pattern"`
	MinValue   any    `toml:"min_value" yaml:"min_value"`
	MaxValue   any    `toml:"max_value" yaml:"max_value"`
	Choices    []any  `toml:"choices" yaml:"choices"`
	MaxBytes   *int   `toml:"max_bytes" yaml:"max_bytes"`
	Sorted     bool   `toml:"sorted" yaml:"sorted"`
	Ordering   string `toml:"ordering" yaml:"ordering"`
	Target     string `toml:"target" yaml:"target"`
	Elem       *Field `toml:"elem" yaml:"elem"`
	Restrict   []any  `toml:"restrict" yaml:"restrict"`
}

// Parse decodes a schema file. The format is chosen by extension:
// .toml, .yaml or .yml.
func Parse(name string, data []byte) (*File, error) {
	var f File
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		md, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("%s: unknown keys %v", name, undecoded)
		}
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported schema file type", name)
	}
	return &f, nil
}

// Glob expands patterns (which may use "**") into a sorted, de-duplicated
// list of files.
func Glob(patterns ...string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", p, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// Load defines every schema found in the files matching patterns into a new
// registry and resolves it.
func Load(patterns ...string) (*model.Registry, []string, error) {
	files, err := Glob(patterns...)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("%w: %s", ErrNoFiles, strings.Join(patterns, ", "))
	}
	var all []Schema
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, err
		}
		f, err := Parse(path, data)
		if err != nil {
			return nil, nil, err
		}
		all = append(all, f.Schemas...)
	}
	reg := model.NewRegistry()
	if err := Define(reg, all); err != nil {
		return nil, nil, err
	}
	if err := reg.Resolve(); err != nil {
		return nil, nil, err
	}
	return reg, files, nil
}

// Define registers schemas with reg. Parents are defined before their
// subclasses regardless of the order they are listed in.
func Define(reg *model.Registry, schemas []Schema) error {
	pending := make([]Schema, len(schemas))
	copy(pending, schemas)
	defined := make(map[string]bool)

	for len(pending) > 0 {
		var next []Schema
		for _, s := range pending {
			if s.Extends != "" && !defined[s.Extends] && has(pending, s.Extends) {
				next = append(next, s)
				continue
			}
			def, err := s.Def()
			if err != nil {
				return err
			}
			if _, err := reg.Define(def); err != nil {
				return err
			}
			defined[s.Name] = true
		}
		if len(next) == len(pending) {
			return fmt.Errorf("%w: inheritance cycle among %s", model.ErrInvalidSchema, names(next))
		}
		pending = next
	}
	return nil
}

func has(schemas []Schema, name string) bool {
	for _, s := range schemas {
		if s.Name == name {
			return true
		}
	}
	return false
}

func names(schemas []Schema) string {
	out := make([]string, len(schemas))
	for i, s := range schemas {
		out[i] = s.Name
	}
	return strings.Join(out, ", ")
}

// Def converts the declaration to a model.SchemaDef.
func (s Schema) Def() (model.SchemaDef, error) {
	def := model.SchemaDef{
		Name:             s.Name,
		Extends:          s.Extends,
		Collection:       s.Collection,
		Embedded:         s.Embedded,
		AllowInheritance: s.AllowInheritance,
		Dynamic:          s.Dynamic,
	}
	for _, fs := range s.Fields {
		f, err := fs.Build()
		if err != nil {
			return def, fmt.Errorf("schema %q: %w", s.Name, err)
		}
		def.Fields = append(def.Fields, f)
	}
	return def, nil
}

// Build converts the declaration to a model.Field.
func (fs Field) Build() (*model.Field, error) {
	kind, ok := model.KindFromString(fs.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: field %q has unknown kind %q", model.ErrInvalidField, fs.Name, fs.Kind)
	}
	opts := fs.options()

	elem := func() (*model.Field, error) {
		if fs.Elem == nil {
			return nil, fmt.Errorf("%w: %s field %q needs elem", model.ErrInvalidField, kind, fs.Name)
		}
		return fs.Elem.Build()
	}

	switch kind {
	case model.KindString:
		return model.StringField(fs.Name, opts...), nil
	case model.KindInt:
		return model.IntField(fs.Name, opts...), nil
	case model.KindFloat:
		return model.FloatField(fs.Name, opts...), nil
	case model.KindDecimal:
		return model.DecimalField(fs.Name, opts...), nil
	case model.KindBoolean:
		return model.BooleanField(fs.Name, opts...), nil
	case model.KindDateTime:
		return model.DateTimeField(fs.Name, opts...), nil
	case model.KindBinary:
		return model.BinaryField(fs.Name, opts...), nil
	case model.KindObjectID:
		return model.ObjectIDField(fs.Name, opts...), nil
	case model.KindEmail:
		return model.EmailField(fs.Name, opts...), nil
	case model.KindURL:
		return model.URLField(fs.Name, opts...), nil
	case model.KindLanguage:
		return model.LanguageField(fs.Name, opts...), nil
	case model.KindDict:
		return model.DictField(fs.Name, opts...), nil
	case model.KindList:
		e, err := elem()
		if err != nil {
			return nil, err
		}
		if fs.Sorted {
			return model.SortedListField(fs.Name, e, opts...), nil
		}
		return model.ListField(fs.Name, e, opts...), nil
	case model.KindSet:
		e, err := elem()
		if err != nil {
			return nil, err
		}
		return model.SetField(fs.Name, e, opts...), nil
	case model.KindMap:
		e, err := elem()
		if err != nil {
			return nil, err
		}
		return model.MapField(fs.Name, e, opts...), nil
	case model.KindEmbedded:
		return model.EmbeddedDocumentField(fs.Name, fs.Target, opts...), nil
	case model.KindReference:
		return model.ReferenceField(fs.Name, fs.Target, opts...), nil
	case model.KindGenericReference:
		return model.GenericReferenceField(fs.Name, opts...), nil
	case model.KindEnum:
		e, err := elem()
		if err != nil {
			return nil, err
		}
		return model.EnumerationField(fs.Name, e, fs.Restrict, opts...), nil
	}
	return nil, fmt.Errorf("%w: field %q has unsupported kind %q", model.ErrInvalidField, fs.Name, kind)
}

func (fs Field) options() []model.FieldOption {
	var opts []model.FieldOption
	if fs.PrimaryKey {
		opts = append(opts, model.PrimaryKey())
	}
	if fs.Required {
		opts = append(opts, model.Required())
	}
	if fs.Default != nil {
		opts = append(opts, model.Default(fs.Default))
	}
	if fs.MinLength != nil {
		opts = append(opts, model.MinLength(*fs.MinLength))
	}
	if fs.MaxLength != nil {
		opts = append(opts, model.MaxLength(*fs.MaxLength))
	}
	if fs.Pattern != "" {
		opts = append(opts, model.Pattern(fs.Pattern))
	}
	if fs.MinValue != nil {
		opts = append(opts, model.MinValue(fs.MinValue))
	}
	if fs.MaxValue != nil {
		opts = append(opts, model.MaxValue(fs.MaxValue))
	}
	if len(fs.Choices) > 0 {
		opts = append(opts, model.Choices(fs.Choices...))
	}
	if fs.MaxBytes != nil {
		opts = append(opts, model.MaxBytes(*fs.MaxBytes))
	}
	if fs.Ordering != "" {
		opts = append(opts, model.Ordering(fs.Ordering))
	}
	return opts
}
