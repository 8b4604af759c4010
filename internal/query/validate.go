package query

// Validate is the single entry point for envelope validation. It composes
// the filter, selection, join, aggregation, and window checks, then produces
// the canonical form. Validation is all-or-nothing and fail-fast: the first
// structural violation aborts the walk and is returned, since walking a
// malformed tree compounds errors unpredictably.
//
// Validate never mutates env; the CanonicalQuery owns a fresh normalized tree.
func Validate(env *Envelope) (*CanonicalQuery, error) {
	return ValidateWithLimits(env, DefaultLimits())
}

// ValidateWithLimits is Validate with explicit recursion limits.
func ValidateWithLimits(env *Envelope, limits Limits) (*CanonicalQuery, error) {
	if env == nil {
		return nil, newError(ErrCodeMissingObject, nil, "envelope is nil")
	}
	if err := validateEnvelope(env, nil, limits.withDefaults(), 0); err != nil {
		return nil, err
	}
	return &CanonicalQuery{query: *normalizeEnvelope(env)}, nil
}

// validateEnvelope checks one envelope level; depth counts enclosing
// subqueries and is capped by limits.MaxJoinDepth.
func validateEnvelope(env *Envelope, path Path, limits Limits, depth int) *ValidationError {
	if env.Object == "" {
		return newError(ErrCodeMissingObject, path.Key("object"), "envelope has no target object")
	}

	if err := checkPagination(env, path); err != nil {
		return err
	}

	// Omitted fields mean "all scalar fields of the root object". The
	// convention is encoded here, once, so every backend agrees: an empty
	// list passes through and executors expand it against metadata.
	if err := validateSelection(env.Fields, path.Key("fields"), true); err != nil {
		return err
	}

	if err := validateFilter(env.Where, path.Key("where")); err != nil {
		return err
	}

	if err := validateJoins(env.Joins, path.Key("joins"), limits, depth); err != nil {
		return err
	}

	if err := checkAggregationConsistency(env, path); err != nil {
		return err
	}

	if err := validateFilter(env.Having, path.Key("having")); err != nil {
		return err
	}

	for i, fn := range env.WindowFunctions {
		if err := checkWindowConsistency(fn, path.Key("windowFunctions").Index(i)); err != nil {
			return err
		}
	}

	return nil
}

// checkPagination enforces mode exclusivity and non-negative bounds.
func checkPagination(env *Envelope, path Path) *ValidationError {
	if env.Offset != nil && env.Cursor != nil {
		return newError(ErrCodeConflictingPaginationModes, path.Key("pagination"),
			"offset and cursor pagination are mutually exclusive")
	}

	if env.Offset != nil {
		if env.Offset.Limit != nil && *env.Offset.Limit < 0 {
			return newError(ErrCodeNegativeLimit, path.Key("limit"),
				"limit must be non-negative, got %d", *env.Offset.Limit)
		}
		if env.Offset.Offset != nil && *env.Offset.Offset < 0 {
			return newError(ErrCodeNegativeLimit, path.Key("offset"),
				"offset must be non-negative, got %d", *env.Offset.Offset)
		}
	}

	if env.Cursor != nil && env.Cursor.Limit != nil && *env.Cursor.Limit < 0 {
		return newError(ErrCodeNegativeLimit, path.Key("limit"),
			"limit must be non-negative, got %d", *env.Cursor.Limit)
	}

	return nil
}
