package gcp

import (
	"context"
	"fmt"

	videointelligence "cloud.google.com/go/videointelligence/apiv1"
)

// NewVideoIntelligenceClient creates a new Video Intelligence client.
func NewVideoIntelligenceClient(ctx context.Context) (*videointelligence.Client, error) {
	client, err := videointelligence.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create video intelligence client: %w", err)
	}
	return client, nil
}
