// Package odm persists documents through a store.Store: it validates and
// encodes on save, decodes on load, and resolves references between
// documents.
package odm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/alfredjeanlab/odm/internal/events"
	"github.com/alfredjeanlab/odm/internal/model"
	"github.com/alfredjeanlab/odm/internal/store"
)

// DefaultDepth is how many levels of references Load resolves eagerly.
const DefaultDepth = 1

// Session binds a resolved registry to a store. It holds no per-document
// state and is safe for concurrent use; individual documents are not.
type Session struct {
	store  store.Store
	reg    *model.Registry
	pub    events.Publisher
	logger *zap.Logger
	depth  int
	now    func() time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithPublisher sets where lifecycle events are published.
func WithPublisher(p events.Publisher) Option {
	return func(s *Session) { s.pub = p }
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithDepth sets how many levels of references Load and Reload resolve.
// Zero leaves every reference as a model.Ref.
func WithDepth(n int) Option {
	return func(s *Session) {
		if n >= 0 {
			s.depth = n
		}
	}
}

// NewSession returns a session over st. The registry must be resolved.
func NewSession(st store.Store, reg *model.Registry, opts ...Option) (*Session, error) {
	if st == nil {
		return nil, errors.New("odm: nil store")
	}
	if reg == nil || !reg.IsResolved() {
		return nil, model.ErrNotResolved
	}
	s := &Session{
		store:  st,
		reg:    reg,
		pub:    &events.NoopPublisher{},
		logger: zap.NewNop(),
		depth:  DefaultDepth,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Registry returns the session's schema registry.
func (s *Session) Registry() *model.Registry { return s.reg }

// Store returns the underlying store.
func (s *Session) Store() store.Store { return s.store }

// Save validates d and upserts it. A document without a primary key gets
// the key the store assigns. On failure the stored record is untouched.
func (s *Session) Save(ctx context.Context, d *model.Document) error {
	_, err := s.Upsert(ctx, d)
	return err
}

// Upsert is Save that also reports whether the store held no record under
// d's key before the write.
func (s *Session) Upsert(ctx context.Context, d *model.Document) (created bool, err error) {
	release, err := s.acquire(d)
	if err != nil {
		return false, err
	}
	defer release()

	if d.State() == model.StateDeleted {
		return false, model.ErrDeleted
	}
	if err := d.Validate(); err != nil {
		return false, err
	}
	rec, err := model.Encode(d)
	if err != nil {
		return false, err
	}
	schema := d.Schema()
	key := rec[model.WireKey]
	delete(rec, model.WireKey)

	created, err = s.isNew(ctx, d, key)
	if err != nil {
		return false, fmt.Errorf("save %s: %w", schema.Name(), err)
	}
	got, err := s.store.Upsert(ctx, schema.Collection(), key, rec)
	if err != nil {
		return false, fmt.Errorf("save %s: %w", schema.Name(), err)
	}
	d.MarkSaved(schema.PrimaryKey().FromWire(s.reg, got))

	ks, _ := store.KeyString(got)
	event := events.DocumentEvent{
		Schema:     schema.Name(),
		Collection: schema.Collection(),
		Key:        ks,
		Created:    created,
		At:         s.now().UTC(),
	}
	s.logger.Debug("document saved",
		zap.String("schema", event.Schema),
		zap.String("collection", event.Collection),
		zap.String("key", event.Key),
		zap.Bool("created", event.Created))
	s.publish(ctx, events.TopicDocumentSaved, event)
	return created, nil
}

// isNew reports whether saving d will create its record. Documents that came
// from the store are known to exist; a caller-supplied key is looked up.
func (s *Session) isNew(ctx context.Context, d *model.Document, key any) (bool, error) {
	if key == nil {
		return true, nil
	}
	switch d.State() {
	case model.StateSaved, model.StateReloaded:
		return false, nil
	}
	_, err := s.store.Find(ctx, d.Schema().Collection(), key)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, store.ErrNotFound):
		return true, nil
	default:
		return false, err
	}
}

// SaveAll validates and saves docs in order, stopping at the first
// failure. Documents saved before the failure stay saved.
func (s *Session) SaveAll(ctx context.Context, docs ...*model.Document) error {
	for i, d := range docs {
		if err := s.Save(ctx, d); err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
	}
	return nil
}

// Reload replaces d's values with the stored record. It fails with an
// error wrapping ErrNotFound, leaving d unchanged, when the record is gone.
func (s *Session) Reload(ctx context.Context, d *model.Document) error {
	release, err := s.acquire(d)
	if err != nil {
		return err
	}
	defer release()

	if d.State() == model.StateDeleted {
		return model.ErrDeleted
	}
	key, err := storedKey(d)
	if err != nil {
		return err
	}
	fresh, err := s.load(ctx, d.Schema().Root(), key)
	if err != nil {
		return fmt.Errorf("reload %s: %w", d, err)
	}
	d.ReplaceWith(fresh)
	s.publish(ctx, events.TopicDocumentReloaded, s.documentEvent(d))
	return nil
}

// Delete removes d from the store. The document moves to the terminal
// deleted state.
func (s *Session) Delete(ctx context.Context, d *model.Document) error {
	release, err := s.acquire(d)
	if err != nil {
		return err
	}
	defer release()

	if d.State() == model.StateDeleted {
		return model.ErrDeleted
	}
	key, err := storedKey(d)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, d.Schema().Collection(), key); err != nil {
		return fmt.Errorf("delete %s: %w", d, err)
	}
	d.MarkDeleted()
	s.logger.Debug("document deleted", zap.Stringer("document", d))
	s.publish(ctx, events.TopicDocumentDeleted, s.documentEvent(d))
	return nil
}

// Load fetches the document of the named schema stored under key and
// resolves its references to the session depth. The key may be given in
// native form (a hex string for ObjectID keys is accepted).
func (s *Session) Load(ctx context.Context, schema string, key any) (*model.Document, error) {
	sc, ok := s.reg.Lookup(schema)
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownSchema, schema)
	}
	if sc.IsEmbedded() {
		return nil, fmt.Errorf("%w: %s", model.ErrNotTopLevel, schema)
	}
	wk, err := sc.PrimaryKey().ToWire(key)
	if err != nil {
		return nil, err
	}
	if wk == nil {
		return nil, model.ErrNoKey
	}
	return s.load(ctx, sc, wk)
}

func (s *Session) load(ctx context.Context, sc *model.Schema, key any) (*model.Document, error) {
	rec, err := s.store.Find(ctx, sc.Collection(), key)
	if err != nil {
		return nil, err
	}
	d, err := model.Decode(sc.Root(), rec)
	if err != nil {
		return nil, err
	}
	if !d.Schema().IsA(sc) {
		return nil, fmt.Errorf("%w: stored %s is not a %s", model.ErrIncompatibleCls, d.Schema().Name(), sc.Name())
	}
	d.MarkLoaded()
	if s.depth > 0 {
		r := s.newResolver(false)
		r.seen[identity(d)] = d
		if err := r.document(ctx, d, s.depth); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// All returns every stored document of the named schema, including
// subclasses, in key order. References are left unresolved.
func (s *Session) All(ctx context.Context, schema string) ([]*model.Document, error) {
	sc, ok := s.reg.Lookup(schema)
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrUnknownSchema, schema)
	}
	if sc.IsEmbedded() {
		return nil, fmt.Errorf("%w: %s", model.ErrNotTopLevel, schema)
	}
	recs, err := s.store.List(ctx, sc.Collection())
	if err != nil {
		return nil, err
	}
	docs := make([]*model.Document, 0, len(recs))
	for _, rec := range recs {
		d, err := model.Decode(sc.Root(), rec)
		if err != nil {
			return nil, err
		}
		if !d.Schema().IsA(sc) {
			continue
		}
		d.MarkLoaded()
		docs = append(docs, d)
	}
	return docs, nil
}

// DropCollection removes every stored document of the named schema's
// collection, subclasses included.
func (s *Session) DropCollection(ctx context.Context, schema string) error {
	sc, ok := s.reg.Lookup(schema)
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrUnknownSchema, schema)
	}
	if sc.IsEmbedded() {
		return fmt.Errorf("%w: %s", model.ErrNotTopLevel, schema)
	}
	if err := s.store.Drop(ctx, sc.Collection()); err != nil {
		return fmt.Errorf("drop %s: %w", sc.Collection(), err)
	}
	s.logger.Info("collection dropped", zap.String("collection", sc.Collection()))
	s.publish(ctx, events.TopicCollectionDropped, events.CollectionDropped{
		Collection: sc.Collection(),
		At:         s.now().UTC(),
	})
	return nil
}

func (s *Session) acquire(d *model.Document) (func(), error) {
	if d == nil {
		return nil, errors.New("odm: nil document")
	}
	if d.Schema().IsEmbedded() {
		return nil, fmt.Errorf("%w: %s", model.ErrNotTopLevel, d.Schema().Name())
	}
	return d.Acquire()
}

func storedKey(d *model.Document) (any, error) {
	if !d.HasKey() {
		return nil, fmt.Errorf("%w: %s", model.ErrNoKey, d.Schema().Name())
	}
	return d.Schema().PrimaryKey().ToWire(d.Key())
}

func (s *Session) documentEvent(d *model.Document) events.DocumentEvent {
	key, _ := storedKey(d)
	ks, _ := store.KeyString(key)
	return events.DocumentEvent{
		Schema:     d.Schema().Name(),
		Collection: d.Schema().Collection(),
		Key:        ks,
		At:         s.now().UTC(),
	}
}

// publish emits an event. Failures are logged, never returned: the store
// write has already happened.
func (s *Session) publish(ctx context.Context, topic string, event any) {
	if err := s.pub.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", zap.String("topic", topic), zap.Error(err))
	}
}
