package analyze

import (
	"context"
	"time"

	"cloud.google.com/go/videointelligence/apiv1/videointelligencepb"
	"github.com/googleapis/gax-go/v2"

	"github.com/skylens/videopulse/internal/config"
)

// fakeOp scripts an annotation operation: it reports not-done until
// pollsUntilDone polls have happened, then returns resp.
type fakeOp struct {
	pollsUntilDone int
	resp           *videointelligencepb.AnnotateVideoResponse
	pollErr        error
	polls          int
}

func (f *fakeOp) Poll(context.Context, ...gax.CallOption) (*videointelligencepb.AnnotateVideoResponse, error) {
	f.polls++
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	if f.polls >= f.pollsUntilDone {
		return f.resp, nil
	}
	return nil, nil
}

func (f *fakeOp) Done() bool {
	return f.pollErr == nil && f.polls >= f.pollsUntilDone
}

func startWith(op AnnotateOperation, err error) StartFunc {
	return func(context.Context, string) (AnnotateOperation, error) {
		return op, err
	}
}

func fastPolling() config.AnalysisConfig {
	return config.AnalysisConfig{
		VisualPollInterval: time.Millisecond,
		VisualPollTimeout:  time.Second,
		AudioPollInterval:  time.Millisecond,
		AudioPollTimeout:   time.Second,
		LanguageCode:       "en-US",
	}
}

func annotateResponse(r *videointelligencepb.VideoAnnotationResults) *videointelligencepb.AnnotateVideoResponse {
	return &videointelligencepb.AnnotateVideoResponse{
		AnnotationResults: []*videointelligencepb.VideoAnnotationResults{r},
	}
}
