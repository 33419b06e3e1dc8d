package model

import "context"

// CatalogRepository is the read side of the catalog document store.
type CatalogRepository interface {
	// FindCandidates returns items matching the ANDed structural filters,
	// up to limit. An empty filter set returns an unrestricted pool up to
	// the store-imposed cap.
	FindCandidates(ctx context.Context, filters SearchFilters, limit int) ([]CatalogItem, error)

	// FindByIDs resolves previously surfaced items for outfit analysis.
	FindByIDs(ctx context.Context, ids []string) ([]CatalogItem, error)
}

// ProfileRepository resolves stored user style profiles.
type ProfileRepository interface {
	// GetProfile returns the profile for the user, or (nil, nil) when the
	// user has none.
	GetProfile(ctx context.Context, userID string) (*UserProfile, error)
}

// Embedder produces fixed-dimension embedding vectors for text.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float64, error)
}
