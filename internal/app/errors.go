package app

import (
	"errors"
	"fmt"

	"tagsink/internal/config"
)

var (
	// ErrDuplicateCollection is returned by NewApp when two collections share a slug.
	ErrDuplicateCollection = fmt.Errorf("duplicate collection: %w", config.ErrDuplicateSlug)

	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnknownCommand    = errors.New("unknown command")

	// ErrNoVault is returned by backup operations when no vault is configured.
	ErrNoVault = errors.New("no vaults configured")
)
