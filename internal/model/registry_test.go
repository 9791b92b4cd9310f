package model

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefineDefaults(t *testing.T) {
	reg := newRegistry(t, SchemaDef{Name: "BlogPost", Fields: []*Field{StringField("title")}})
	s, ok := reg.Lookup("BlogPost")
	require.True(t, ok)
	assert.Equal(t, "blogpost", s.Collection())
	assert.False(t, s.AllowsInheritance())
	require.NotNil(t, s.PrimaryKey())
	assert.Equal(t, "id", s.PrimaryKey().Name())
	assert.Equal(t, KindObjectID, s.PrimaryKey().Kind())
	assert.Equal(t, []string{"id", "title"}, fieldNames(s))
}

func fieldNames(s *Schema) []string {
	var names []string
	for _, f := range s.Fields() {
		names = append(names, f.Name())
	}
	return names
}

func TestDefineExplicitPrimaryKey(t *testing.T) {
	reg := newRegistry(t, SchemaDef{Name: "Member", Collection: "members", Fields: []*Field{
		IntField("user_num", PrimaryKey()),
	}})
	s, _ := reg.Lookup("Member")
	assert.Equal(t, "members", s.Collection())
	assert.Equal(t, "user_num", s.PrimaryKey().Name())
	assert.False(t, s.HasImplicitKey())
	assert.True(t, s.PrimaryKey().IsRequired())
}

func TestDefineErrors(t *testing.T) {
	tests := []struct {
		name string
		defs []SchemaDef
		err  error
	}{
		{
			name: "duplicate schema",
			defs: []SchemaDef{{Name: "A"}, {Name: "A"}},
			err:  ErrInvalidSchema,
		},
		{
			name: "extends undefined",
			defs: []SchemaDef{{Name: "B", Extends: "A"}},
			err:  ErrUnknownSchema,
		},
		{
			name: "extends non-inheritable",
			defs: []SchemaDef{{Name: "A"}, {Name: "B", Extends: "A"}},
			err:  ErrInvalidSchema,
		},
		{
			name: "field collision with parent",
			defs: []SchemaDef{
				{Name: "A", AllowInheritance: true, Fields: []*Field{StringField("name")}},
				{Name: "B", Extends: "A", Fields: []*Field{IntField("name")}},
			},
			err: ErrInvalidField,
		},
		{
			name: "two primary keys",
			defs: []SchemaDef{{Name: "A", Fields: []*Field{
				StringField("a", PrimaryKey()),
				StringField("b", PrimaryKey()),
			}}},
			err: ErrInvalidField,
		},
		{
			name: "embedded primary key",
			defs: []SchemaDef{{Name: "A", Embedded: true, Fields: []*Field{StringField("a", PrimaryKey())}}},
			err:  ErrInvalidField,
		},
		{
			name: "incompatible constraint",
			defs: []SchemaDef{{Name: "A", Fields: []*Field{IntField("a", MaxLength(3))}}},
			err:  ErrInvalidField,
		},
		{
			name: "bad regex",
			defs: []SchemaDef{{Name: "A", Fields: []*Field{StringField("a", Pattern("("))}}},
			err:  ErrInvalidField,
		},
		{
			name: "list without element",
			defs: []SchemaDef{{Name: "A", Fields: []*Field{ListField("a", nil)}}},
			err:  ErrInvalidField,
		},
		{
			name: "reserved field name",
			defs: []SchemaDef{{Name: "A", Fields: []*Field{StringField("_id")}}},
			err:  ErrInvalidField,
		},
		{
			name: "dotted field name",
			defs: []SchemaDef{{Name: "A", Fields: []*Field{StringField("a.b")}}},
			err:  ErrInvalidField,
		},
		{
			name: "min value of wrong type",
			defs: []SchemaDef{{Name: "A", Fields: []*Field{IntField("a", MinValue("zero"))}}},
			err:  ErrInvalidField,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			var err error
			for _, def := range tt.defs {
				if _, err = reg.Define(def); err != nil {
					break
				}
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestResolveForwardAndSelfReferences(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Define(SchemaDef{Name: "Product", Fields: []*Field{
		StringField("name"),
		ReferenceField("company", "Company"),
	}})
	require.NoError(t, err)
	_, err = reg.Define(SchemaDef{Name: "Employee", Fields: []*Field{
		StringField("name"),
		ReferenceField("boss", SelfTarget),
		ListField("reports", ReferenceField("", SelfTarget)),
	}})
	require.NoError(t, err)
	_, err = reg.Define(SchemaDef{Name: "Company", Fields: []*Field{StringField("name")}})
	require.NoError(t, err)
	require.NoError(t, reg.Resolve())

	emp, _ := reg.Lookup("Employee")
	boss, _ := emp.Field("boss")
	assert.Equal(t, "Employee", boss.Target())
	reports, _ := emp.Field("reports")
	assert.Equal(t, "Employee", reports.Elem().Target())
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name string
		defs []SchemaDef
		err  error
	}{
		{
			name: "unknown reference target",
			defs: []SchemaDef{{Name: "A", Fields: []*Field{ReferenceField("b", "Missing")}}},
			err:  ErrUnknownSchema,
		},
		{
			name: "reference to embedded schema",
			defs: []SchemaDef{
				{Name: "E", Embedded: true},
				{Name: "A", Fields: []*Field{ReferenceField("e", "E")}},
			},
			err: ErrInvalidField,
		},
		{
			name: "embedding a top-level schema",
			defs: []SchemaDef{
				{Name: "T"},
				{Name: "A", Fields: []*Field{EmbeddedDocumentField("t", "T")}},
			},
			err: ErrInvalidField,
		},
		{
			name: "nested unknown embedded target",
			defs: []SchemaDef{{Name: "A", Fields: []*Field{ListField("xs", EmbeddedDocumentField("", "Nope"))}}},
			err:  ErrUnknownSchema,
		},
		{
			name: "ordering by unknown field",
			defs: []SchemaDef{
				{Name: "C", Embedded: true, Fields: []*Field{IntField("order")}},
				{Name: "A", Fields: []*Field{SortedListField("cs", EmbeddedDocumentField("", "C"), Ordering("rank"))}},
			},
			err: ErrInvalidField,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistry()
			for _, def := range tt.defs {
				_, err := reg.Define(def)
				require.NoError(t, err)
			}
			err := reg.Resolve()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.False(t, reg.IsResolved())
		})
	}
}

func TestRegistryFrozenAfterResolve(t *testing.T) {
	reg := newRegistry(t, SchemaDef{Name: "A"})
	_, err := reg.Define(SchemaDef{Name: "B"})
	assert.ErrorIs(t, err, ErrRegistryFrozen)
	assert.NoError(t, reg.Resolve())
}

func TestNewBeforeResolve(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Define(SchemaDef{Name: "A"})
	require.NoError(t, err)
	_, err = reg.New("A", nil)
	assert.ErrorIs(t, err, ErrNotResolved)
}

func TestNewRacingResolve(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Define(SchemaDef{Name: "A", Fields: []*Field{StringField("name")}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				d, err := reg.New("A", map[string]any{"name": "x"})
				if err == nil {
					assert.Equal(t, "x", d.Get("name"))
					return
				}
				if !assert.ErrorIs(t, err, ErrNotResolved) {
					return
				}
			}
		}()
	}
	require.NoError(t, reg.Resolve())
	wg.Wait()
	assert.True(t, reg.IsResolved())
}

func TestInheritance(t *testing.T) {
	reg := newRegistry(t,
		SchemaDef{Name: "Animal", AllowInheritance: true, Fields: []*Field{StringField("name")}},
		SchemaDef{Name: "Dog", Extends: "Animal", Fields: []*Field{BooleanField("good")}},
		SchemaDef{Name: "Puppy", Extends: "Dog", Fields: []*Field{IntField("weeks")}},
	)
	animal, _ := reg.Lookup("Animal")
	dog, _ := reg.Lookup("Dog")
	puppy, _ := reg.Lookup("Puppy")

	assert.Equal(t, "animal", dog.Collection())
	assert.Equal(t, "animal", puppy.Collection())
	assert.Equal(t, []string{"id", "name", "good", "weeks"}, fieldNames(puppy))
	assert.Same(t, animal.PrimaryKey(), puppy.PrimaryKey())
	assert.True(t, puppy.IsA(animal))
	assert.True(t, puppy.IsA(dog))
	assert.False(t, dog.IsA(puppy))
	assert.Equal(t, []string{"Dog", "Puppy"}, animal.Subclasses())
	assert.Same(t, animal, puppy.Root())
}

func TestNewUnknownField(t *testing.T) {
	reg := newRegistry(t,
		SchemaDef{Name: "Strict", Fields: []*Field{StringField("name")}},
		SchemaDef{Name: "Loose", Dynamic: true, Fields: []*Field{StringField("name")}},
	)
	_, err := reg.New("Strict", map[string]any{"nope": 1})
	assert.ErrorIs(t, err, ErrUnknownField)

	d, err := reg.New("Loose", map[string]any{"extra": 1})
	require.NoError(t, err)
	assert.Equal(t, 1, d.Get("extra"))
	assert.Equal(t, []string{"extra"}, d.DynamicFields())

	_, err = reg.New("Missing", nil)
	assert.ErrorIs(t, err, ErrUnknownSchema)
}
