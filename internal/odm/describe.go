package odm

import "github.com/alfredjeanlab/odm/internal/model"

// FieldInfo is the serializable description of a field.
type FieldInfo struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Required    bool   `json:"required,omitempty"`
	PrimaryKey  bool   `json:"primary_key,omitempty"`
}

// SchemaInfo is the serializable description of a schema.
type SchemaInfo struct {
	Name       string      `json:"name"`
	Collection string      `json:"collection,omitempty"`
	Parent     string      `json:"parent,omitempty"`
	Embedded   bool        `json:"embedded,omitempty"`
	Dynamic    bool        `json:"dynamic,omitempty"`
	Subclasses []string    `json:"subclasses,omitempty"`
	Fields     []FieldInfo `json:"fields"`
}

// Describe summarizes sc, including inherited fields.
func Describe(sc *model.Schema) SchemaInfo {
	info := SchemaInfo{
		Name:       sc.Name(),
		Embedded:   sc.IsEmbedded(),
		Dynamic:    sc.IsDynamic(),
		Subclasses: sc.Subclasses(),
	}
	if !sc.IsEmbedded() {
		info.Collection = sc.Collection()
	}
	if p := sc.Parent(); p != nil {
		info.Parent = p.Name()
	}
	for _, f := range sc.Fields() {
		info.Fields = append(info.Fields, FieldInfo{
			Name:        f.Name(),
			Kind:        f.Kind().String(),
			Description: f.Describe(),
			Required:    f.IsRequired(),
			PrimaryKey:  f.IsPrimaryKey(),
		})
	}
	return info
}

// DescribeAll describes every schema of the session's registry, sorted by
// name.
func (s *Session) DescribeAll() []SchemaInfo {
	schemas := s.reg.Schemas()
	out := make([]SchemaInfo, 0, len(schemas))
	for _, sc := range schemas {
		out = append(out, Describe(sc))
	}
	return out
}
