// Package repository holds the gorm queries behind the producers and the receiver.
package repository

import (
	"errors"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

var (
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateEvent reports an inbound event whose idempotency key is already stored.
	ErrDuplicateEvent = errors.New("event already stored")
)

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalized() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}
