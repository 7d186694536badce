package schema

// RelationshipKind discriminates how two kinds are connected.
type RelationshipKind int

const (
	// RelationManyToOne: this kind carries a foreign key into the target.
	RelationManyToOne RelationshipKind = iota
	// RelationOneToMany: the target carries a foreign key back to this kind.
	RelationOneToMany
	// RelationManyToMany: rows are connected through a join table.
	RelationManyToMany
)

func (k RelationshipKind) String() string {
	switch k {
	case RelationManyToOne:
		return "many_to_one"
	case RelationOneToMany:
		return "one_to_many"
	case RelationManyToMany:
		return "many_to_many"
	}
	return "unknown"
}

// Relationship declares how one entity kind reaches another. The loader
// resolves relationships in batches and hands the resolved records to the
// parent through Assign, so each kind decides where loaded records live.
type Relationship struct {
	Kind RelationshipKind
	// Target is the related entity kind.
	Target string
	// ForeignKey is the connecting column: on the source table for
	// many-to-one, on the target table for one-to-many.
	ForeignKey string
	// JoinTable and its two key columns connect the sides of a
	// many-to-many relationship.
	JoinTable     string
	SourceJoinKey string
	TargetJoinKey string
	// Assign hands the resolved records for one parent to that parent.
	// For many-to-one the slice holds at most one record. A nil Assign
	// loads but discards, which is only useful in tests.
	Assign func(parent any, records []any)
}

// BelongsTo declares a many-to-one relationship: the declaring kind carries
// foreignKey referencing the target's primary key.
func BelongsTo(target, foreignKey string, assign func(parent, child any)) *Relationship {
	r := &Relationship{Kind: RelationManyToOne, Target: target, ForeignKey: foreignKey}
	if assign != nil {
		r.Assign = func(parent any, records []any) {
			if len(records) > 0 {
				assign(parent, records[0])
			}
		}
	}
	return r
}

// HasMany declares a one-to-many relationship: the target kind carries
// foreignKey referencing the declaring kind's primary key.
func HasMany(target, foreignKey string, assign func(parent any, children []any)) *Relationship {
	return &Relationship{Kind: RelationOneToMany, Target: target, ForeignKey: foreignKey, Assign: assign}
}

// ManyToMany declares a relationship resolved through joinTable, whose
// sourceKey column references the declaring kind and targetKey column the
// target kind.
func ManyToMany(target, joinTable, sourceKey, targetKey string, assign func(parent any, children []any)) *Relationship {
	return &Relationship{
		Kind:          RelationManyToMany,
		Target:        target,
		JoinTable:     joinTable,
		SourceJoinKey: sourceKey,
		TargetJoinKey: targetKey,
		Assign:        assign,
	}
}

// One adapts a typed single-record assignment to the untyped contract the
// loader calls. Records of the wrong type are ignored.
func One[P, C any](fn func(parent *P, child *C)) func(parent, child any) {
	return func(parent, child any) {
		p, ok := parent.(*P)
		if !ok {
			return
		}
		c, ok := child.(*C)
		if !ok {
			return
		}
		fn(p, c)
	}
}

// Many adapts a typed multi-record assignment to the untyped contract the
// loader calls. Records of the wrong type are dropped from the slice.
func Many[P, C any](fn func(parent *P, children []*C)) func(parent any, children []any) {
	return func(parent any, children []any) {
		p, ok := parent.(*P)
		if !ok {
			return
		}
		out := make([]*C, 0, len(children))
		for _, child := range children {
			if c, ok := child.(*C); ok {
				out = append(out, c)
			}
		}
		fn(p, out)
	}
}
