package reconcile

import (
	"fmt"
)

// Step identifies a phase of a sync.
type Step int

const (
	StepValidate Step = iota + 1
	StepCreateProduct
	StepUpdateProduct
	StepUpdateVariant
	StepUploadImage
	StepRefresh
)

func (s Step) String() string {
	switch s {
	case StepValidate:
		return "validate"
	case StepCreateProduct:
		return "create product"
	case StepUpdateProduct:
		return "update product"
	case StepUpdateVariant:
		return "update variant"
	case StepUploadImage:
		return "upload image"
	case StepRefresh:
		return "refresh"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// SyncError reports the step that stopped a sync and the item it was working
// on. Index and ImageIndex are -1 when the step is not about a single
// variant or image.
type SyncError struct {
	Step       Step
	Index      int
	ImageIndex int
	// VariantID is the server id of the variant at Index, if any.
	VariantID int64
	Err       error
}

func (e *SyncError) Error() string {
	switch {
	case e.ImageIndex >= 0:
		return fmt.Sprintf("%s: variant %d image %d: %v", e.Step, e.Index, e.ImageIndex, e.Err)
	case e.Index >= 0:
		return fmt.Sprintf("%s: variant %d: %v", e.Step, e.Index, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Step, e.Err)
	}
}

func (e *SyncError) Unwrap() error { return e.Err }

func stepError(step Step, err error) *SyncError {
	return &SyncError{Step: step, Index: -1, ImageIndex: -1, Err: err}
}
