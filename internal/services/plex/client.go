package plex

import (
	"context"
	"net/url"
)

// Service defines the Plex Media Server operations used by library sync.
type Service interface {
	// FindSection resolves a library section key by its display name.
	FindSection(ctx context.Context, name string) (string, error)
	// SectionScanning reports whether the section is currently scanning.
	SectionScanning(ctx context.Context, sectionKey string) (bool, error)
	// RefreshPath triggers a targeted scan of one folder within a section.
	RefreshPath(ctx context.Context, sectionKey, path string) error
	// FindItemByFile locates an item's rating key by exact on-disk path match.
	FindItemByFile(ctx context.Context, sectionKey, file string) (string, error)
	// UpdateItemMetadata patches metadata fields on an item.
	UpdateItemMetadata(ctx context.Context, ratingKey string, fields url.Values) error
}
