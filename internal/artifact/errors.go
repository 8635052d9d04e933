package artifact

import "fmt"

// UnsupportedDtypeError reports a source tensor whose element type has no
// canonical manifest mapping.
type UnsupportedDtypeError struct {
	Tensor string
	Dtype  string
}

func (e *UnsupportedDtypeError) Error() string {
	return fmt.Sprintf("tensor %s: unsupported dtype %q", e.Tensor, e.Dtype)
}

// EmptyGroupError reports a weight group with no tensors when the caller
// asked for empty groups to be rejected.
type EmptyGroupError struct {
	Group int
}

func (e *EmptyGroupError) Error() string {
	return fmt.Sprintf("weight group %d is empty", e.Group)
}

// ConflictError reports an output path occupied by a non-directory file.
type ConflictError struct {
	Path string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("output path %s already exists as a file", e.Path)
}

// WriteError reports a filesystem failure while materializing the
// artifact, naming the offending path.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
