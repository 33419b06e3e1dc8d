package errx

import (
	"context"
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/mongo"
)

// WrapStore maps document store errors to the unified AppError type.
// A missing document is not an error condition worth a 5xx; everything
// else from the driver is treated as an upstream failure.
func WrapStore(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return New(err, http.StatusNotFound, CatalogErrorMessage)
	case errors.Is(err, context.DeadlineExceeded):
		return New(err, http.StatusGatewayTimeout, CatalogErrorMessage)
	default:
		return New(err, http.StatusBadGateway, CatalogErrorMessage)
	}
}

// WrapEmbedding maps embedding provider errors to the unified AppError type.
func WrapEmbedding(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(err, http.StatusGatewayTimeout, EmbeddingErrorMessage)
	}

	return New(err, http.StatusBadGateway, EmbeddingErrorMessage)
}
