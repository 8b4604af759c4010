package query

// JoinType is the closed set of join kinds.
type JoinType string

const (
	JoinInner JoinType = "inner"
	JoinLeft  JoinType = "left"
	JoinRight JoinType = "right"
	JoinFull  JoinType = "full"
)

// Known reports whether t is a member of the closed set.
func (t JoinType) Known() bool {
	switch t {
	case JoinInner, JoinLeft, JoinRight, JoinFull:
		return true
	}
	return false
}

// JoinTarget is what a join attaches: a named object or an inline subquery.
//
// This is a sealed interface - only ObjectRef and Subquery implement it.
type JoinTarget interface {
	joinTarget() // Marker method - seals interface to this package
}

// ObjectRef names another object. Joins reference targets by name, never by
// back-pointer, which keeps the IR an acyclic tree.
type ObjectRef string

func (ObjectRef) joinTarget() {}

// Subquery is an inline query as join target. It recursively owns a full
// Envelope - the one place the IR is recursive at the envelope level, which
// is why the validator caps nesting depth.
type Subquery struct {
	Query *Envelope
}

func (Subquery) joinTarget() {}

// JoinSpec joins the envelope's object to a target under a join condition.
//
// On is a full FilterExpression and must reference at least one field of the
// joined target, qualified by the join's reference name (alias when set,
// target object name otherwise). The check is syntactic by naming
// convention; whether the fields exist is the metadata service's concern.
type JoinSpec struct {
	Type   JoinType
	Target JoinTarget
	Alias  string
	On     FilterExpression
}

// referenceName is the qualifier join conditions use for this join's fields.
func (j JoinSpec) referenceName() string {
	if j.Alias != "" {
		return j.Alias
	}
	switch target := j.Target.(type) {
	case ObjectRef:
		return string(target)
	case Subquery:
		if target.Query != nil {
			return target.Query.Object
		}
	}
	return ""
}

// ValidateJoins checks a sibling join list with the default limits:
// alias uniqueness, join condition shape, the target-field naming
// convention, and recursive subquery validation with depth capping.
func ValidateJoins(joins []JoinSpec) error {
	if err := validateJoins(joins, nil, DefaultLimits(), 0); err != nil {
		return err
	}
	return nil
}

func validateJoins(joins []JoinSpec, path Path, limits Limits, depth int) *ValidationError {
	aliases := make(map[string]int, len(joins))
	for i, join := range joins {
		joinPath := path.Index(i)

		if !join.Type.Known() {
			return newError(ErrCodeUnknownOperator, joinPath.Key("type"),
				"unknown join type %q", join.Type)
		}

		if join.Alias != "" {
			if prev, dup := aliases[join.Alias]; dup {
				return newError(ErrCodeDuplicateJoinAlias, joinPath.Key("alias"),
					"alias %q already used by join %d", join.Alias, prev)
			}
			aliases[join.Alias] = i
		}

		switch target := join.Target.(type) {
		case ObjectRef:
			if target == "" {
				return newError(ErrCodeMissingObject, joinPath.Key("target"),
					"join target object name is empty")
			}
		case Subquery:
			if target.Query == nil {
				return newError(ErrCodeMissingObject, joinPath.Key("subquery"),
					"join subquery is empty")
			}
			if depth+1 > limits.MaxJoinDepth {
				return newError(ErrCodeJoinNestingTooDeep, joinPath.Key("subquery"),
					"subquery nesting exceeds maximum depth %d", limits.MaxJoinDepth)
			}
			if err := validateEnvelope(target.Query, joinPath.Key("subquery"), limits, depth+1); err != nil {
				return err
			}
		default:
			return newError(ErrCodeMissingObject, joinPath.Key("target"),
				"join has no target")
		}

		if join.On == nil {
			return newError(ErrCodeJoinOnMissingTargetField, joinPath.Key("on"),
				"join requires a condition")
		}
		if err := validateFilter(join.On, joinPath.Key("on")); err != nil {
			return err
		}
		if ref := join.referenceName(); ref != "" && !filterReferencesPrefix(join.On, ref) {
			return newError(ErrCodeJoinOnMissingTargetField, joinPath.Key("on"),
				"join condition never references a %q field", ref)
		}
	}
	return nil
}
