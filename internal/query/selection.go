package query

// FieldSelection represents one entry of a projection list.
//
// This is a sealed interface - only Scalar and Relation implement it.
//
// Omitting the fields list entirely on an envelope means "all scalar fields
// of the root object"; that default lives in the validator (see Validate),
// not in callers, so every backend agrees on the default field set.
type FieldSelection interface {
	fieldSelection() // Marker method - seals interface to this package
}

// Scalar selects a single named field of the current object.
type Scalar struct {
	Name string
}

func (Scalar) fieldSelection() {}

// Relation projects a related object, optionally aliased, with a recursive
// sub-selection. An empty SubSelections list means "select the relation's
// default representation" (backend-defined), which is distinct from omitting
// the relation entirely.
type Relation struct {
	Name          string
	Alias         string
	SubSelections []FieldSelection
}

func (Relation) fieldSelection() {}

// outputName is the column name a selection produces: the alias when set,
// the field/relation name otherwise.
func outputName(sel FieldSelection) string {
	switch s := sel.(type) {
	case Scalar:
		return s.Name
	case *Scalar:
		return s.Name
	case Relation:
		if s.Alias != "" {
			return s.Alias
		}
		return s.Name
	case *Relation:
		if s.Alias != "" {
			return s.Alias
		}
		return s.Name
	default:
		return ""
	}
}

// ValidateSelection walks a selection tree and rejects duplicate output
// names at the same nesting level (an ambiguous output column). Relations
// nest to arbitrary depth; each level is checked independently.
//
// A scalar repeating an identical scalar at the envelope's top level is the
// one tolerated duplicate: it is unambiguous there, and normalization drops
// the repeat. Inside relation sub-selections, and for every collision
// involving an alias or a relation, the duplicate is an error.
func ValidateSelection(fields []FieldSelection) error {
	if err := validateSelection(fields, nil, true); err != nil {
		return err
	}
	return nil
}

func validateSelection(fields []FieldSelection, path Path, topLevel bool) *ValidationError {
	seen := make(map[string]int, len(fields))
	for i, sel := range fields {
		name := outputName(sel)
		if name == "" {
			return newError(ErrCodeDuplicateSelectionAlias, path.Index(i),
				"selection entry has no name")
		}
		if prev, dup := seen[name]; dup {
			_, selScalar := asScalar(sel)
			_, prevScalar := asScalar(fields[prev])
			if !topLevel || !selScalar || !prevScalar {
				return newError(ErrCodeDuplicateSelectionAlias, path.Index(i),
					"output column %q already produced by selection %d", name, prev)
			}
		} else {
			seen[name] = i
		}

		if rel, ok := asRelation(sel); ok {
			if err := validateSelection(rel.SubSelections, path.Index(i).Key("fields"), false); err != nil {
				return err
			}
		}
	}
	return nil
}

func asRelation(sel FieldSelection) (Relation, bool) {
	switch s := sel.(type) {
	case Relation:
		return s, true
	case *Relation:
		return *s, true
	}
	return Relation{}, false
}

func asScalar(sel FieldSelection) (Scalar, bool) {
	switch s := sel.(type) {
	case Scalar:
		return s, true
	case *Scalar:
		return *s, true
	}
	return Scalar{}, false
}
