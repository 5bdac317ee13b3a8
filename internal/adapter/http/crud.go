package http

import (
	"context"
	"net/http"
)

// handleList creates a handler that lists resources of the current request
// scope and returns JSON. A nil result is written as [].
func handleList[T any](listFn func(ctx context.Context) ([]T, error), notFoundMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := listFn(r.Context())
		if err != nil {
			writeDomainError(w, err, notFoundMsg)
			return
		}
		if items == nil {
			items = []T{}
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// handleCurrent creates a handler that returns the single resource the
// request scope resolves to.
func handleCurrent[T any](getFn func(ctx context.Context) (*T, error), notFoundMsg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		item, err := getFn(r.Context())
		if err != nil {
			writeDomainError(w, err, notFoundMsg)
			return
		}
		writeJSON(w, http.StatusOK, item)
	}
}
