// Package errors provides sentinel errors for post route enumeration.
// These let callers tell "no posts" apart from "posts could not be listed".
package errors

import "errors"

var (
	// ErrPostsDirNotFound indicates the configured posts directory does not exist.
	ErrPostsDirNotFound = errors.New("posts directory not found")

	// ErrPostsDirUnreadable indicates listing the posts directory failed for another reason.
	ErrPostsDirUnreadable = errors.New("posts directory unreadable")

	// ErrRouteCollision indicates two post files derive the same route identifier.
	ErrRouteCollision = errors.New("route collision detected")

	// ErrRouteNotFound indicates a route identifier does not map back to any post file.
	ErrRouteNotFound = errors.New("route not found")
)
