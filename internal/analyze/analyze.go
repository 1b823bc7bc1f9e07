// Package analyze wraps the external annotation service behind two
// independent adapters, one for visual signal and one for speech. Each
// adapter starts its own long-running job, polls it to a terminal state
// under its own bound, and normalizes the raw output into the record shape
// the rest of the pipeline consumes. Adapters never fail a job: every
// failure or timeout becomes a record with Error set and no other signal.
package analyze

import (
	"context"

	"cloud.google.com/go/videointelligence/apiv1/videointelligencepb"
	"github.com/googleapis/gax-go/v2"
)

// AnnotateOperation is the poll handle for one in-flight annotation job.
// The generated long-running operation wrappers satisfy it.
type AnnotateOperation interface {
	Poll(ctx context.Context, opts ...gax.CallOption) (*videointelligencepb.AnnotateVideoResponse, error)
	Done() bool
}

// StartFunc launches one annotation job for a gs:// URI and returns its
// poll handle.
type StartFunc func(ctx context.Context, gcsURI string) (AnnotateOperation, error)
