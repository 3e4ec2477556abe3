package client

import (
	"context"
)

// VisionClient sends one image plus a prompt to a vision model and returns
// the raw text answer. Parsing is left to the caller.
type VisionClient interface {
	Query(ctx context.Context, model, prompt, imgB64 string) (string, error)
}
