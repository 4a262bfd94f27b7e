package document

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingID is returned when an exercise, slide or task block has no id.
	ErrMissingID = errors.New("missing id")
	// ErrDuplicateID is returned when two blocks of the same kind share an id.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrMalformedPrivateSpec is returned when a task's private spec is not valid JSON.
	ErrMalformedPrivateSpec = errors.New("malformed private_spec")
	// ErrInvalidAttributes is returned when block attributes have the wrong types.
	ErrInvalidAttributes = errors.New("invalid attributes")
)

// BlockError locates a failure inside the block tree.
type BlockError struct {
	Path string // e.g. content[2].innerBlocks[0]
	Name string
	Err  error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Path, e.Name, e.Err)
}

func (e *BlockError) Unwrap() error {
	return e.Err
}
