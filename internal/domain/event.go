package domain

import (
	"context"
	"time"
)

// EventType names a catalog change.
type EventType string

// Catalog event types.
const (
	EventProductCreated EventType = "product.created"
	EventProductUpdated EventType = "product.updated"
	EventProductDeleted EventType = "product.deleted"
	EventImageAdded     EventType = "image.added"
	EventImageDeleted   EventType = "image.deleted"
)

// CatalogEvent describes one change to the catalog.
type CatalogEvent struct {
	Type      EventType `json:"type"`
	ProductID int64     `json:"product_id"`
	ImageID   int64     `json:"image_id,omitempty"`
	ModelName string    `json:"model_name,omitempty"`
	ImagePath string    `json:"image_path,omitempty"`
	At        time.Time `json:"at"`
}

// EventPublisher delivers catalog events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, events ...CatalogEvent) error
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish implements EventPublisher.
func (NopPublisher) Publish(context.Context, ...CatalogEvent) error { return nil }
