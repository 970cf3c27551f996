package domain

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrSlotUnavailable        = errors.New("slot unavailable")
	ErrConcurrentModification = errors.New("concurrent modification")
)
