// Package fence implements the fence pointer: the inclusive key range
// summarizing one on-disk block of a run.
package fence

import "fmt"

// Pointer is an inclusive key range [Low, High] describing the keys
// present in one block of a run.
type Pointer struct {
	Low  int32
	High int32
}

// New constructs a Pointer. It returns an error if low > high.
func New(low, high int32) (Pointer, error) {
	if low > high {
		return Pointer{}, fmt.Errorf("fence: low %d > high %d", low, high)
	}
	return Pointer{Low: low, High: high}, nil
}

// InRange reports whether k falls within [Low, High].
func (p Pointer) InRange(k int32) bool {
	return p.Low <= k && k <= p.High
}

// String renders the pointer as "[low, high]".
func (p Pointer) String() string {
	return fmt.Sprintf("[%d, %d]", p.Low, p.High)
}
