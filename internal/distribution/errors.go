package distribution

import "errors"

var (
	errInvalidRange = errors.New("distribution: uniform high is less than low")
	errInvalidStd   = errors.New("distribution: normal std is negative or NaN")
	errUnknownKind  = errors.New("distribution: unknown kind")
)
