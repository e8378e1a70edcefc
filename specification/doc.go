// Package specification builds composable, typed predicates that the
// repositories translate into Bun WHERE clauses.
//
//	spec := specification.And(
//		specification.Eq("taste", "sweet"),
//		specification.Lt("price", 3.0),
//	)
package specification
