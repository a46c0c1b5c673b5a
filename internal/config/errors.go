package config

import "errors"

// ErrDuplicateSlug is returned by Validate when two collections share a slug.
var ErrDuplicateSlug = errors.New("duplicate collection slug")
