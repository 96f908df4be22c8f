package ldmodel

// Operator describes an operator behavior in a clause.
type Operator string

const (
	// OperatorIn matches a context attribute against any of the clause values with exact equality.
	OperatorIn Operator = "in"
	// OperatorEndsWith matches a string attribute against any string clause value that it ends with.
	OperatorEndsWith Operator = "endsWith"
	// OperatorStartsWith matches a string attribute against any string clause value that it starts with.
	OperatorStartsWith Operator = "startsWith"
	// OperatorMatches matches a string attribute against any clause value interpreted as a regex.
	OperatorMatches Operator = "matches"
	// OperatorContains matches a string attribute against any string clause value that it contains.
	OperatorContains Operator = "contains"
	// OperatorLessThan matches a numeric attribute against any clause value that it is less than.
	OperatorLessThan Operator = "lessThan"
	// OperatorLessThanOrEqual matches a numeric attribute against any clause value that it is less
	// than or equal to.
	OperatorLessThanOrEqual Operator = "lessThanOrEqual"
	// OperatorGreaterThan matches a numeric attribute against any clause value that it is greater than.
	OperatorGreaterThan Operator = "greaterThan"
	// OperatorGreaterThanOrEqual matches a numeric attribute against any clause value that it is
	// greater than or equal to.
	OperatorGreaterThanOrEqual Operator = "greaterThanOrEqual"
	// OperatorBefore matches an attribute interpreted as a date/timestamp against any clause value
	// that it is earlier than.
	OperatorBefore Operator = "before"
	// OperatorAfter matches an attribute interpreted as a date/timestamp against any clause value
	// that it is later than.
	OperatorAfter Operator = "after"
	// OperatorSegmentMatch matches a context against any of the segments named by the clause values.
	//
	// This operator is implemented by the evaluation engine rather than by the matching functions in
	// this package, since it requires access to data beyond the clause itself.
	OperatorSegmentMatch Operator = "segmentMatch"
	// OperatorSemVerEqual matches an attribute interpreted as a semantic version against any clause
	// value that it is equal to.
	OperatorSemVerEqual Operator = "semVerEqual"
	// OperatorSemVerLessThan matches an attribute interpreted as a semantic version against any
	// clause value that it precedes.
	OperatorSemVerLessThan Operator = "semVerLessThan"
	// OperatorSemVerGreaterThan matches an attribute interpreted as a semantic version against any
	// clause value that it follows.
	OperatorSemVerGreaterThan Operator = "semVerGreaterThan"
)
