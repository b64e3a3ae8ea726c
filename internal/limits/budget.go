package limits

import (
	"errors"
	"fmt"
)

const MaxStepsErrorCode int64 = 8002

// ErrMaxSteps matches every MaxStepsError with errors.Is.
var ErrMaxSteps = errors.New("max steps exceeded")

// Budget counts executed instructions against a fixed limit. A zero limit
// means unlimited; a nil Budget never runs out.
type Budget struct {
	limit int64
	used  int64
}

func NewBudget(limit int64) *Budget {
	if limit < 0 {
		limit = 0
	}
	return &Budget{limit: limit}
}

func (b *Budget) Limit() int64 {
	if b == nil {
		return 0
	}
	return b.limit
}

func (b *Budget) Used() int64 {
	if b == nil {
		return 0
	}
	return b.used
}

func (b *Budget) Remaining() int64 {
	if b == nil || b.limit == 0 {
		return -1
	}
	return b.limit - b.used
}

func MaxStepsMessage(limit int64) string {
	return fmt.Sprintf("Script execution reached the limit of %d expressions", limit)
}

type MaxStepsError struct {
	Limit int64
}

func (e MaxStepsError) Error() string {
	return MaxStepsMessage(e.Limit)
}

func (e MaxStepsError) Is(target error) bool {
	return target == ErrMaxSteps
}

// Charge consumes n steps. Once the limit is reached every further charge
// fails, so exhaustion is sticky.
func (b *Budget) Charge(n int64) error {
	if b == nil || b.limit == 0 {
		return nil
	}
	if n <= 0 {
		return nil
	}
	if b.used+n > b.limit {
		b.used = b.limit
		return MaxStepsError{Limit: b.limit}
	}
	b.used += n
	return nil
}

// ErrMaxDepth matches every MaxDepthError with errors.Is.
var ErrMaxDepth = errors.New("max call depth exceeded")

func MaxDepthMessage(limit int) string {
	return fmt.Sprintf("Script execution exceeded the maximum call depth of %d", limit)
}

type MaxDepthError struct {
	Limit int
}

func (e MaxDepthError) Error() string {
	return MaxDepthMessage(e.Limit)
}

func (e MaxDepthError) Is(target error) bool {
	return target == ErrMaxDepth
}
