package datarecording

import "errors"

// ErrTableNotMapped is returned when querying a table that has no struct
// mapped to it.
var ErrTableNotMapped = errors.New("table not mapped")
