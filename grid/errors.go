package grid

import "fmt"

// OutOfRangeError reports a cell address outside the 4x8 grid
type OutOfRangeError struct {
	Row, Col int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("cell (%d,%d) out of range: grid is %dx%d", e.Row, e.Col, Rows, Cols)
}

// ShapeMismatchError reports a candidate matrix that is not exactly 4x8.
// Row is -1 when the row count itself is wrong.
type ShapeMismatchError struct {
	Rows int
	Row  int
	Cols int
}

func (e *ShapeMismatchError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("grid shape mismatch: got %d rows, want %d", e.Rows, Rows)
	}
	return fmt.Sprintf("grid shape mismatch: row %d has %d cells, want %d", e.Row, e.Cols, Cols)
}
