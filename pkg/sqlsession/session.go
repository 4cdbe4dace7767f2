// Package sqlsession is a small unit-of-work session over database/sql
// (SQLite) and pgx (PostgreSQL). It tracks loaded and saved entities,
// writes their changes on Flush and runs bulk statements through hql.
package sqlsession

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/chameleon-db/bulkdml/pkg/engine"
	"github.com/chameleon-db/bulkdml/pkg/engine/hql"
)

// ErrNotFound is returned by Find when no row has the requested key.
var ErrNotFound = errors.New("entity not found")

// ErrKeyMismatch is returned by Get when dest is already tracked under a
// different key. Load another row into a fresh instance instead.
var ErrKeyMismatch = errors.New("instance is tracked under a different key")

// Session implements engine.Session. It is not safe for concurrent use.
type Session struct {
	id      string
	conn    Conn
	schema  *engine.Schema
	dialect hql.Dialect
	logger  *zap.Logger
	debug   *engine.DebugContext

	identity *engine.IdentityMap
	tracked  []*tracked
	inserts  []*tracked
	deletes  []*tracked
}

// tracked is an entity instance the session knows about, with the column
// values it had when last read from or written to the store.
type tracked struct {
	entity   *engine.Entity
	value    reflect.Value // addressable struct
	obj      any           // the caller's pointer
	snapshot []any
}

// Option configures a Session or Factory.
type Option func(*options)

type options struct {
	logger *zap.Logger
	debug  *engine.DebugContext
}

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDebug echoes compiled SQL through d.
func WithDebug(d *engine.DebugContext) Option {
	return func(o *options) {
		o.debug = d
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewSession opens a session on conn. The session does not own conn.
func NewSession(conn Conn, schema *engine.Schema, dialect hql.Dialect, opts ...Option) *Session {
	o := buildOptions(opts)
	id := uuid.NewString()
	return &Session{
		id:       id,
		conn:     conn,
		schema:   schema,
		dialect:  dialect,
		logger:   o.logger.With(zap.String("session", id)),
		debug:    o.debug,
		identity: engine.NewIdentityMap(),
	}
}

// ID identifies the session in log output.
func (s *Session) ID() string {
	return s.id
}

// Tracked reports how many entity instances the session currently holds.
func (s *Session) Tracked() int {
	return len(s.tracked) + len(s.inserts)
}

// ============================================================
// UNIT OF WORK
// ============================================================

// Save schedules obj (a pointer to a mapped struct) for insertion on the
// next Flush. A zero key is generated by the store and written back.
// Saving an instance the session already tracks is a no-op.
func (s *Session) Save(ctx context.Context, obj any) error {
	t, err := s.track(obj)
	if err != nil {
		return err
	}
	if s.isTracked(obj) {
		return nil
	}
	for _, pending := range s.inserts {
		if pending.obj == obj {
			return nil
		}
	}
	s.inserts = append(s.inserts, t)
	return nil
}

// Delete schedules obj for deletion on the next Flush. Deleting an
// instance that was saved but never flushed just drops the insert.
func (s *Session) Delete(ctx context.Context, obj any) error {
	for i, pending := range s.inserts {
		if pending.obj == obj {
			s.inserts = append(s.inserts[:i], s.inserts[i+1:]...)
			return nil
		}
	}
	t, err := s.track(obj)
	if err != nil {
		return err
	}
	if t.entity.PrimaryKey() == nil {
		return fmt.Errorf("cannot delete %s: entity has no primary key", t.entity.Name)
	}
	s.deletes = append(s.deletes, t)
	return nil
}

// Get loads the row with key id into dest, a pointer to a mapped struct.
// When the instance is already tracked its current state is copied into
// dest; otherwise dest itself becomes the tracked instance. A dest the
// session already holds can only be reloaded under its own key.
func (s *Session) Get(ctx context.Context, dest any, id any) (bool, error) {
	t, err := s.track(dest)
	if err != nil {
		return false, err
	}
	pk := t.entity.PrimaryKey()
	if pk == nil {
		return false, fmt.Errorf("cannot load %s: entity has no primary key", t.entity.Name)
	}
	if s.holds(dest) {
		if current := keyOf(t); engine.IdentityKey(current) != engine.IdentityKey(id) {
			return false, fmt.Errorf("cannot load %s %v into the instance of %s %v: %w",
				t.entity.Name, id, t.entity.Name, current, ErrKeyMismatch)
		}
	}

	if cached, ok := s.identity.Get(t.entity.Name, id); ok {
		if cached != dest {
			t.value.Set(reflect.ValueOf(cached).Elem())
		}
		return true, nil
	}

	names := t.entity.FieldNames()
	columns := make([]string, len(names))
	targets := make([]any, len(names))
	for i, name := range names {
		f := t.entity.Fields[name]
		columns[i] = s.dialect.Quote(f.Column)
		targets[i] = t.value.FieldByIndex(f.Index).Addr().Interface()
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s",
		strings.Join(columns, ", "),
		s.dialect.Quote(t.entity.Table),
		s.dialect.Quote(pk.Column),
		s.dialect.Placeholder(1),
	)
	s.echo(t.entity.Name, "SELECT", query, []any{id})

	if err := s.conn.QueryRow(ctx, query, id).Scan(targets...); err != nil {
		if errors.Is(err, ErrNoRows) {
			return false, nil
		}
		return false, err
	}

	t.snapshot = snapshot(t)
	s.identity.Put(t.entity.Name, id, dest)
	if !s.isTracked(dest) {
		s.tracked = append(s.tracked, t)
	}
	return true, nil
}

// Find loads the instance of T with key id, returning the tracked pointer
// when there is one.
func Find[T any](ctx context.Context, s *Session, id any) (*T, error) {
	entity, err := s.entityFor(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}
	if cached, ok := s.identity.Get(entity.Name, id); ok {
		if obj, ok := cached.(*T); ok {
			return obj, nil
		}
	}

	obj := new(T)
	found, err := s.Get(ctx, obj, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return obj, nil
}

// Flush writes pending inserts, then changes to tracked instances, then
// pending deletes.
func (s *Session) Flush(ctx context.Context) error {
	var inserted, updated, deleted int

	for len(s.inserts) > 0 {
		t := s.inserts[0]
		if err := s.insert(ctx, t); err != nil {
			s.logger.Error("flush insert failed", zap.String("entity", t.entity.Name), zap.Error(err))
			return err
		}
		s.inserts = s.inserts[1:]
		s.tracked = append(s.tracked, t)
		inserted++
	}

	for _, t := range s.tracked {
		changed, err := s.update(ctx, t)
		if err != nil {
			s.logger.Error("flush update failed", zap.String("entity", t.entity.Name), zap.Error(err))
			return err
		}
		if changed {
			updated++
		}
	}

	for len(s.deletes) > 0 {
		t := s.deletes[0]
		if err := s.remove(ctx, t); err != nil {
			s.logger.Error("flush delete failed", zap.String("entity", t.entity.Name), zap.Error(err))
			return err
		}
		s.deletes = s.deletes[1:]
		deleted++
	}

	s.logger.Debug("flushed",
		zap.Int("inserted", inserted),
		zap.Int("updated", updated),
		zap.Int("deleted", deleted),
	)
	return nil
}

// Clear forgets every tracked instance and pending operation. Unflushed
// changes are lost.
func (s *Session) Clear() error {
	s.logger.Debug("cleared",
		zap.Int("tracked", len(s.tracked)),
		zap.Int("pending", len(s.inserts)+len(s.deletes)),
	)
	s.identity.Clear()
	s.tracked = nil
	s.inserts = nil
	s.deletes = nil
	return nil
}

// CreateQuery parses and compiles a bulk statement for this session's
// dialect.
func (s *Session) CreateQuery(statement string) (engine.PreparedQuery, error) {
	stmt, err := hql.Parse(statement)
	if err != nil {
		return nil, err
	}
	compiled, err := hql.Compile(stmt, s.schema, s.dialect)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("query prepared",
		zap.String("statement", statement),
		zap.String("sql", compiled.SQL),
	)
	return &Query{
		session:  s,
		compiled: compiled,
		bound:    make(map[string]any, len(compiled.Params)),
	}, nil
}

// ============================================================
// WRITES
// ============================================================

func (s *Session) insert(ctx context.Context, t *tracked) error {
	pk := t.entity.PrimaryKey()
	generated := pk != nil && t.value.FieldByIndex(pk.Index).IsZero()

	var columns, placeholders []string
	var args []any
	values := make(map[string]any)
	for _, name := range t.entity.FieldNames() {
		f := t.entity.Fields[name]
		if generated && f == pk {
			continue
		}
		v := t.value.FieldByIndex(f.Index).Interface()
		columns = append(columns, s.dialect.Quote(f.Column))
		args = append(args, v)
		placeholders = append(placeholders, s.dialect.Placeholder(len(args)))
		values[f.Column] = v
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.dialect.Quote(t.entity.Table),
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	if pk == nil {
		s.echo(t.entity.Name, "INSERT", query, args)
		if _, err := s.conn.Exec(ctx, query, args...); err != nil {
			return mapStoreError(err, t.entity, values)
		}
		t.snapshot = snapshot(t)
		return nil
	}

	query += " RETURNING " + s.dialect.Quote(pk.Column)
	s.echo(t.entity.Name, "INSERT", query, args)

	key := t.value.FieldByIndex(pk.Index).Addr().Interface()
	if err := s.conn.QueryRow(ctx, query, args...).Scan(key); err != nil {
		return mapStoreError(err, t.entity, values)
	}

	t.snapshot = snapshot(t)
	s.identity.Put(t.entity.Name, keyOf(t), t.obj)
	return nil
}

// update writes the columns of t that differ from its snapshot.
func (s *Session) update(ctx context.Context, t *tracked) (bool, error) {
	pk := t.entity.PrimaryKey()
	if pk == nil || t.snapshot == nil {
		return false, nil
	}

	var sets []string
	var args []any
	values := make(map[string]any)
	for i, name := range t.entity.FieldNames() {
		f := t.entity.Fields[name]
		if f == pk {
			continue
		}
		current := t.value.FieldByIndex(f.Index).Interface()
		if reflect.DeepEqual(current, t.snapshot[i]) {
			continue
		}
		args = append(args, current)
		sets = append(sets, fmt.Sprintf("%s = %s", s.dialect.Quote(f.Column), s.dialect.Placeholder(len(args))))
		values[f.Column] = current
	}
	if len(sets) == 0 {
		return false, nil
	}

	args = append(args, keyOf(t))
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		s.dialect.Quote(t.entity.Table),
		strings.Join(sets, ", "),
		s.dialect.Quote(pk.Column),
		s.dialect.Placeholder(len(args)),
	)
	s.echo(t.entity.Name, "UPDATE", query, args)

	if _, err := s.conn.Exec(ctx, query, args...); err != nil {
		return false, mapStoreError(err, t.entity, values)
	}
	t.snapshot = snapshot(t)
	return true, nil
}

func (s *Session) remove(ctx context.Context, t *tracked) error {
	pk := t.entity.PrimaryKey()
	key := keyOf(t)
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		s.dialect.Quote(t.entity.Table),
		s.dialect.Quote(pk.Column),
		s.dialect.Placeholder(1),
	)
	s.echo(t.entity.Name, "DELETE", query, []any{key})

	if _, err := s.conn.Exec(ctx, query, key); err != nil {
		return mapStoreError(err, t.entity, nil)
	}

	s.identity.Remove(t.entity.Name, key)
	for i, other := range s.tracked {
		if other.obj == t.obj {
			s.tracked = append(s.tracked[:i], s.tracked[i+1:]...)
			break
		}
	}
	return nil
}

// ============================================================
// HELPERS
// ============================================================

// track resolves obj to its mapping. Instances already known to the
// session are returned as is.
func (s *Session) track(obj any) (*tracked, error) {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("expected a non-nil pointer to a struct, got %T", obj)
	}
	for _, list := range [][]*tracked{s.tracked, s.inserts} {
		for _, t := range list {
			if t.obj == obj {
				return t, nil
			}
		}
	}
	entity, err := s.entityFor(v.Elem().Type())
	if err != nil {
		return nil, err
	}
	return &tracked{entity: entity, value: v.Elem(), obj: obj}, nil
}

func (s *Session) isTracked(obj any) bool {
	for _, t := range s.tracked {
		if t.obj == obj {
			return true
		}
	}
	return false
}

// holds reports whether obj is tracked or pending insertion.
func (s *Session) holds(obj any) bool {
	if s.isTracked(obj) {
		return true
	}
	for _, t := range s.inserts {
		if t.obj == obj {
			return true
		}
	}
	return false
}

func (s *Session) entityFor(t reflect.Type) (*engine.Entity, error) {
	entity := s.schema.GetEntity(t.Name())
	if entity == nil {
		return nil, &engine.UnknownEntityError{Entity: t.Name(), Available: s.schema.EntityNames()}
	}
	if entity.GoType != nil && entity.GoType != t {
		return nil, fmt.Errorf("entity %s is mapped to %s, not %s", entity.Name, entity.GoType, t)
	}
	for _, name := range entity.FieldNames() {
		if entity.Fields[name].Index == nil {
			return nil, fmt.Errorf("entity %s has no struct mapping; map it with engine.MapEntity", entity.Name)
		}
	}
	return entity, nil
}

func (s *Session) echo(entity, op, query string, args []any) {
	s.debug.SQL(entity, op, query, args)
	s.logger.Debug("sql", zap.String("entity", entity), zap.String("op", op), zap.String("sql", query))
}

func snapshot(t *tracked) []any {
	names := t.entity.FieldNames()
	values := make([]any, len(names))
	for i, name := range names {
		values[i] = t.value.FieldByIndex(t.entity.Fields[name].Index).Interface()
	}
	return values
}

func keyOf(t *tracked) any {
	return t.value.FieldByIndex(t.entity.PrimaryKey().Index).Interface()
}
