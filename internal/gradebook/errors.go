package gradebook

import "errors"

var (
	ErrNoData       = errors.New("no data")
	ErrNoSession    = errors.New("cell is not being edited")
	ErrEmptyScore   = errors.New("edited score is empty")
	ErrInvalidScore = errors.New("invalid score")
	ErrUnknownKind  = errors.New("unknown assessment kind")
	ErrReadOnlyKind = errors.New("scores of this assessment kind cannot be edited")
)
