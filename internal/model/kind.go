package model

// Kind identifies the value kind a Field accepts.
type Kind string

const (
	KindString           Kind = "string"
	KindInt              Kind = "int"
	KindFloat            Kind = "float"
	KindDecimal          Kind = "decimal"
	KindBoolean          Kind = "boolean"
	KindDateTime         Kind = "datetime"
	KindBinary           Kind = "binary"
	KindList             Kind = "list"
	KindSet              Kind = "set"
	KindDict             Kind = "dict"
	KindMap              Kind = "map"
	KindEmbedded         Kind = "embedded"
	KindReference        Kind = "reference"
	KindGenericReference Kind = "generic_reference"
	KindEnum             Kind = "enum"
	KindLanguage         Kind = "language"
	KindEmail            Kind = "email"
	KindURL              Kind = "url"
	KindObjectID         Kind = "objectid"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// IsValid checks whether the kind is a known value.
func (k Kind) IsValid() bool {
	switch k {
	case KindString, KindInt, KindFloat, KindDecimal, KindBoolean, KindDateTime,
		KindBinary, KindList, KindSet, KindDict, KindMap, KindEmbedded, KindReference,
		KindGenericReference, KindEnum, KindLanguage, KindEmail, KindURL, KindObjectID:
		return true
	}
	return false
}

// IsStringLike reports whether values of the kind are strings, which is what
// length and pattern constraints require.
func (k Kind) IsStringLike() bool {
	switch k {
	case KindString, KindLanguage, KindEmail, KindURL:
		return true
	}
	return false
}

// IsNumeric reports whether the kind supports min/max value constraints.
func (k Kind) IsNumeric() bool {
	switch k {
	case KindInt, KindFloat, KindDecimal:
		return true
	}
	return false
}

// IsContainer reports whether the kind holds other values.
func (k Kind) IsContainer() bool {
	switch k {
	case KindList, KindSet, KindDict, KindMap:
		return true
	}
	return false
}

// IsReference reports whether the kind stores a pointer to another document.
func (k Kind) IsReference() bool {
	return k == KindReference || k == KindGenericReference
}

// KindFromString parses a kind name as used in schema files. A few aliases
// are accepted for readability.
func KindFromString(s string) (Kind, bool) {
	switch s {
	case "str":
		return KindString, true
	case "integer":
		return KindInt, true
	case "number":
		return KindFloat, true
	case "bool":
		return KindBoolean, true
	case "timestamp":
		return KindDateTime, true
	case "bytes":
		return KindBinary, true
	case "embedded_document":
		return KindEmbedded, true
	case "generic":
		return KindGenericReference, true
	case "enumeration":
		return KindEnum, true
	}
	k := Kind(s)
	return k, k.IsValid()
}
