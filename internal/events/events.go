package events

import (
	"context"
	"time"
)

// Event topic constants
const (
	TopicDocumentSaved     = "odm.document.saved"
	TopicDocumentReloaded  = "odm.document.reloaded"
	TopicDocumentDeleted   = "odm.document.deleted"
	TopicCollectionDropped = "odm.collection.dropped"

	// TopicAll matches every event the session emits.
	TopicAll = "odm.>"
)

// Event types

// DocumentEvent describes a persistence operation on one document. Key is
// the store's typed key string ("oid:...", "s:...", "i:...").
type DocumentEvent struct {
	Schema     string    `json:"schema"`
	Collection string    `json:"collection"`
	Key        string    `json:"key"`
	Created    bool      `json:"created,omitempty"`
	At         time.Time `json:"at"`
}

type CollectionDropped struct {
	Collection string    `json:"collection"`
	At         time.Time `json:"at"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
