// Package provider defines the narrow capability set the Engine treats
// every remote backend as satisfying, and implements it over WebDAV.
package provider

import (
	"context"
	"time"
)

// Item is one blob's metadata as reported by a provider.
type Item struct {
	Name           string
	Path           string
	Size           int64
	RemoteModified time.Time
	Hash           string // optional; empty if the backend doesn't report one
}

// Provider is the opaque capability set the Engine depends on. It lists,
// uploads, downloads, and deletes blobs identified by path; the Engine
// never inspects transport details.
type Provider interface {
	TestConnection(ctx context.Context) (bool, error)
	List(ctx context.Context, path string) ([]Item, error)
	Upload(ctx context.Context, path string, data []byte) error
	Download(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
	CreateDirectory(ctx context.Context, path string) error
	Metadata(ctx context.Context, path string) (Item, error)
}
