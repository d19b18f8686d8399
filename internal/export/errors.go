package export

import "fmt"

// MalformedInputError reports an export document that is not well-formed XML.
type MalformedInputError struct {
	Path string // empty when parsing from a reader
	Line int
	Err  error
}

func (e *MalformedInputError) Error() string {
	where := e.Path
	if where == "" {
		where = "export"
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: malformed export: %v", where, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: malformed export: %v", where, e.Err)
}

func (e *MalformedInputError) Unwrap() error { return e.Err }
