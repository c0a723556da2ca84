package netsup

import "errors"

// ErrMissingDependency is returned by constructors when a required
// capability is nil.
var ErrMissingDependency = errors.New("netsup: missing dependency")
