package errors

// Category-specific error constructors for the query core

// Compile errors

// InvalidRequestf creates a generic statement validation error detected while preparing.
func InvalidRequestf(format string, args ...interface{}) *Error {
	return Newf(Invalid, format, args...).WithClass(ClassCompile)
}

func UnknownTableError(keyspace, table string) *Error {
	return Newf(Invalid, "unconfigured table %s", table).
		WithClass(ClassCompile).
		WithTable(keyspace, table)
}

func UnknownKeyspaceError(keyspace string) *Error {
	return Newf(Invalid, "keyspace %s does not exist", keyspace).
		WithClass(ClassCompile).
		WithTable(keyspace, "")
}

// UnrecognizedEntityError reports a column or alias that does not resolve
// against the table schema.
func UnrecognizedEntityError(name, clause string) *Error {
	return Newf(Invalid, "undefined name %s in %s clause", name, clause).
		WithClass(ClassCompile).
		WithColumn(name)
}

func AmbiguousColumnError(name string) *Error {
	return Newf(Invalid, "column reference %s is ambiguous", name).
		WithClass(ClassCompile).
		WithColumn(name)
}

func AliasNotAllowedError(alias, clause string) *Error {
	return Newf(Invalid, "aliases aren't allowed in the %s clause ('%s')", clause, alias).
		WithClass(ClassCompile).
		WithColumn(alias)
}

// FilteringRequiredError reports a restriction set that cannot be answered
// by partition/clustering slicing or an index.
func FilteringRequiredError() *Error {
	return New(Invalid, "cannot execute this query as it might involve data filtering and thus may have unpredictable performance").
		WithClass(ClassCompile).
		WithHint("If you want to execute this query despite the performance unpredictability, use ALLOW FILTERING")
}

func PartitionKeyUnrestrictedError(missing string) *Error {
	return Newf(Invalid, "partition key parts: %s must be restricted as other parts are", missing).
		WithClass(ClassCompile).
		WithColumn(missing)
}

func DistinctSelectionError(column string) *Error {
	return Newf(Invalid, "SELECT DISTINCT queries must only request partition key columns (not %s)", column).
		WithClass(ClassCompile).
		WithColumn(column)
}

func UnrecognizedOrderingColumnError(column string) *Error {
	return Newf(Invalid, "order by on unknown column %s", column).
		WithClass(ClassCompile).
		WithColumn(column)
}

func OrderByNonClusteringError(column string) *Error {
	return Newf(Invalid, "order by is only supported on clustering columns, got %s", column).
		WithClass(ClassCompile).
		WithColumn(column)
}

func MalformedLimitError(reason string) *Error {
	return Newf(Invalid, "invalid limit: %s", reason).
		WithClass(ClassCompile)
}

// Bind errors

// BoundArityError reports a mismatch between supplied values and bind markers.
func BoundArityError(expected, actual int) *Error {
	return Newf(Invalid, "there were %d markers(?) in CQL but %d bound variables", expected, actual).
		WithClass(ClassBind)
}

func InvalidLimitError(reason string) *Error {
	return Newf(Invalid, "invalid limit: %s", reason).
		WithClass(ClassBind)
}

func InvalidBoundValueError(name, reason string) *Error {
	return Newf(Invalid, "invalid value for %s: %s", name, reason).
		WithClass(ClassBind).
		WithColumn(name)
}

func NullPartitionKeyError(column string) *Error {
	return Newf(Invalid, "invalid null value for partition key part %s", column).
		WithClass(ClassBind).
		WithColumn(column)
}

func UnpreparedError(id string) *Error {
	return Newf(Unprepared, "prepared query with ID %s not found", id).
		WithClass(ClassBind).
		WithHint("Re-prepare the statement; it may have been evicted or invalidated by a schema change.")
}

// Execution errors, created by storage collaborators and passed through unchanged.

func ReadTimeoutError(received, blockFor int) *Error {
	return Newf(ReadTimeout, "operation timed out - received only %d responses", received).
		WithClass(ClassExecution).
		WithDetailf("%d replica responses required.", blockFor)
}

func UnavailableError(required, alive int) *Error {
	return New(Unavailable, "cannot achieve consistency level").
		WithClass(ClassExecution).
		WithDetailf("%d replicas required but only %d alive.", required, alive)
}

func ReadFailureError(failures int) *Error {
	return Newf(ReadFailure, "operation failed - received %d failure responses", failures).
		WithClass(ClassExecution)
}

func FunctionExecutionError(function, reason string) *Error {
	return Newf(FunctionFailure, "execution of %s failed: %s", function, reason).
		WithClass(ClassExecution)
}

// Configuration errors
func InvalidConfigurationError(parameter, value string) *Error {
	return Newf(ConfigError, "invalid value for parameter \"%s\": \"%s\"", parameter, value)
}
