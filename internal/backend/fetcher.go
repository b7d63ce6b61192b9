package backend

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// ErrTransport wraps failures to obtain a payload from its source.
var ErrTransport = errors.New("backend transport")

// Fetcher obtains the current backend payload.
type Fetcher interface {
	FetchPayload(ctx context.Context) (*Payload, error)
}

// FileFetcher reads the payload from a local JSON file.
type FileFetcher struct {
	Path string
}

// NewFileFetcher returns a Fetcher reading path on every call.
func NewFileFetcher(path string) *FileFetcher {
	return &FileFetcher{Path: path}
}

// FetchPayload implements Fetcher.
func (f *FileFetcher) FetchPayload(ctx context.Context) (*Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Path == "" {
		return nil, fmt.Errorf("%w: no payload file configured", ErrTransport)
	}

	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return DecodePayload(data)
}
