package sqlsession

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/chameleon-db/bulkdml/pkg/engine"
	"github.com/chameleon-db/bulkdml/pkg/engine/mutation"
)

// ============================================================
// TEST HELPERS
// ============================================================

type Car struct {
	Id   int
	Name string
	Year int
}

const carsDDL = `CREATE TABLE cars (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE,
	year INTEGER NOT NULL
)`

// openTestFactory creates a fresh SQLite database file per test.
func openTestFactory(t *testing.T, opts ...Option) *Factory {
	t.Helper()
	ctx := context.Background()

	dsn := filepath.Join(t.TempDir(), uuid.NewString()+".db")
	schema := engine.NewSchema(engine.MustMapEntity[Car]())

	f, err := OpenSQLite(ctx, dsn, schema, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	_, err = f.Conn().Exec(ctx, carsDDL)
	require.NoError(t, err)
	return f
}

func countCars(t *testing.T, f *Factory) int {
	t.Helper()
	var n int
	require.NoError(t, f.Conn().QueryRow(context.Background(), `SELECT COUNT(*) FROM cars`).Scan(&n))
	return n
}

func yearOf(c *Car) any { return &c.Year }
func nameOf(c *Car) any { return &c.Name }

// ============================================================
// BULK STATEMENTS
// ============================================================

func TestUpdate_SingleRecord(t *testing.T) {
	ctx := context.Background()
	s := openTestFactory(t).NewSession()

	require.NoError(t, s.Save(ctx, &Car{Name: "BMW", Year: 2000}))

	n, err := mutation.Update[Car](s).
		SetProperty(engine.FieldOf(yearOf), 2001).
		Where(engine.Prop("Id"), 1).
		Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var updated Car
	found, err := s.Get(ctx, &updated, 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2001, updated.Year)
	assert.Equal(t, "BMW", updated.Name)
}

func TestDelete_ByName(t *testing.T) {
	ctx := context.Background()
	s := openTestFactory(t).NewSession()

	require.NoError(t, s.Save(ctx, &Car{Name: "BMW", Year: 2000}))
	require.NoError(t, s.Save(ctx, &Car{Name: "Porsche", Year: 2000}))

	n, err := mutation.Delete[Car](s).Where(engine.FieldOf(nameOf), "BMW").Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var deleted, remained Car
	found, err := s.Get(ctx, &deleted, 1)
	require.NoError(t, err)
	assert.False(t, found)

	found, err = s.Get(ctx, &remained, 2)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Porsche", remained.Name)
}

func TestDelete_All(t *testing.T) {
	ctx := context.Background()
	f := openTestFactory(t)
	s := f.NewSession()

	for _, name := range []string{"BMW", "Porsche", "Audi"} {
		require.NoError(t, s.Save(ctx, &Car{Name: name, Year: 2000}))
	}

	n, err := mutation.Delete[Car](s).Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, countCars(t, f))
}

func TestUpdate_MultipleRows(t *testing.T) {
	ctx := context.Background()
	f := openTestFactory(t)
	s := f.NewSession()

	require.NoError(t, s.Save(ctx, &Car{Name: "BMW", Year: 2000}))
	require.NoError(t, s.Save(ctx, &Car{Name: "Porsche", Year: 2000}))
	require.NoError(t, s.Save(ctx, &Car{Name: "Audi", Year: 1999}))

	n, err := mutation.Update[Car](s).
		SetProperty(engine.Prop("Year"), 2010).
		Where(engine.Prop("Year"), 2000).
		Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUpdate_NoUpdatesLeavesSessionUntouched(t *testing.T) {
	ctx := context.Background()
	f := openTestFactory(t)
	s := f.NewSession()

	require.NoError(t, s.Save(ctx, &Car{Name: "BMW", Year: 2000}))

	_, err := mutation.Update[Car](s).Where(engine.Prop("Id"), 1).Execute(ctx)

	assert.ErrorIs(t, err, engine.ErrNoUpdatesSpecified)
	assert.Equal(t, 0, countCars(t, f), "pending insert must not be flushed")
	assert.Equal(t, 1, s.Tracked())
}

func TestDelete_DuplicateFilterField(t *testing.T) {
	ctx := context.Background()
	s := openTestFactory(t).NewSession()

	require.NoError(t, s.Save(ctx, &Car{Name: "BMW", Year: 2000}))
	require.NoError(t, s.Save(ctx, &Car{Name: "Porsche", Year: 2000}))

	n, err := mutation.Delete[Car](s).
		Where(engine.Prop("Id"), 1).
		Where(engine.Prop("Id"), 2).
		Execute(ctx)

	require.NoError(t, err)
	assert.Equal(t, 0, n, "Id = 1 AND Id = 2 matches nothing")
}

func TestUpdate_UnknownProperty(t *testing.T) {
	ctx := context.Background()
	s := openTestFactory(t).NewSession()

	_, err := mutation.Update[Car](s).SetProperty(engine.Prop("Colour"), "red").Execute(ctx)

	var fieldErr *engine.UnknownFieldError
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, "Colour", fieldErr.Field)
}

func TestUpdate_StringAndIntValues(t *testing.T) {
	ctx := context.Background()
	s := openTestFactory(t).NewSession()

	require.NoError(t, s.Save(ctx, &Car{Name: "BMW", Year: 2000}))

	n, err := mutation.Update[Car](s).
		SetProperty(engine.Prop("Name"), "BMW M3").
		SetProperty(engine.Prop("Year"), int64(1986)).
		Where(engine.Prop("Name"), "BMW").
		Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	car, err := Find[Car](ctx, s, 1)
	require.NoError(t, err)
	assert.Equal(t, Car{Id: 1, Name: "BMW M3", Year: 1986}, *car)
}

// ============================================================
// SESSION CONSISTENCY
// ============================================================

func TestBulkUpdate_FlushesPendingChangesAndClearsCache(t *testing.T) {
	ctx := context.Background()
	s := openTestFactory(t).NewSession()

	bmw := &Car{Name: "BMW", Year: 2000}
	require.NoError(t, s.Save(ctx, bmw))
	require.NoError(t, s.Flush(ctx))
	require.Equal(t, 1, bmw.Id, "generated key written back")

	// In-memory change, not flushed yet
	bmw.Name = "BMW 2002"

	_, err := mutation.Update[Car](s).SetProperty(engine.Prop("Year"), 2001).Where(engine.Prop("Id"), 1).Execute(ctx)
	require.NoError(t, err)

	assert.Equal(t, 0, s.Tracked(), "session cache cleared")
	assert.Equal(t, 2000, bmw.Year, "detached instance is not refreshed")

	reloaded, err := Find[Car](ctx, s, 1)
	require.NoError(t, err)
	assert.NotSame(t, bmw, reloaded)
	assert.Equal(t, "BMW 2002", reloaded.Name, "pending change was flushed before the statement")
	assert.Equal(t, 2001, reloaded.Year)
}

func TestFind_ReturnsTrackedInstance(t *testing.T) {
	ctx := context.Background()
	s := openTestFactory(t).NewSession()

	require.NoError(t, s.Save(ctx, &Car{Name: "BMW", Year: 2000}))
	require.NoError(t, s.Flush(ctx))
	require.NoError(t, s.Clear())

	first, err := Find[Car](ctx, s, 1)
	require.NoError(t, err)
	second, err := Find[Car](ctx, s, 1)
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = Find[Car](ctx, s, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGet_TrackedInstanceKeepsItsKey(t *testing.T) {
	ctx := context.Background()
	f := openTestFactory(t)
	s := f.NewSession()

	require.NoError(t, s.Save(ctx, &Car{Name: "BMW", Year: 2000}))
	require.NoError(t, s.Save(ctx, &Car{Name: "Porsche", Year: 2010}))
	require.NoError(t, s.Flush(ctx))
	require.NoError(t, s.Clear())

	var c Car
	found, err := s.Get(ctx, &c, 1)
	require.NoError(t, err)
	require.True(t, found)

	_, err = s.Get(ctx, &c, 2)
	require.ErrorIs(t, err, ErrKeyMismatch)
	assert.Equal(t, Car{Id: 1, Name: "BMW", Year: 2000}, c)

	// reloading under the same key is still fine
	found, err = s.Get(ctx, &c, 1)
	require.NoError(t, err)
	assert.True(t, found)

	bmw, err := Find[Car](ctx, s, 1)
	require.NoError(t, err)
	assert.Same(t, &c, bmw)
	assert.Equal(t, "BMW", bmw.Name)

	porsche, err := Find[Car](ctx, s, 2)
	require.NoError(t, err)
	assert.NotSame(t, &c, porsche)
	assert.Equal(t, "Porsche", porsche.Name)

	require.NoError(t, s.Flush(ctx))
	var name string
	require.NoError(t, f.Conn().QueryRow(ctx, `SELECT name FROM cars WHERE id = ?`, 1).Scan(&name))
	assert.Equal(t, "BMW", name)
}

func TestGet_PendingInsertCannotLoadAnotherRow(t *testing.T) {
	ctx := context.Background()
	f := openTestFactory(t)
	s := f.NewSession()

	require.NoError(t, s.Save(ctx, &Car{Name: "BMW", Year: 2000}))
	require.NoError(t, s.Flush(ctx))

	pending := &Car{Name: "Audi", Year: 2005}
	require.NoError(t, s.Save(ctx, pending))

	_, err := s.Get(ctx, pending, 1)
	require.ErrorIs(t, err, ErrKeyMismatch)
	assert.Equal(t, "Audi", pending.Name)

	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 2, countCars(t, f))
}

func TestFlush_DirtyCheckingAndDelete(t *testing.T) {
	ctx := context.Background()
	f := openTestFactory(t)
	s := f.NewSession()

	car := &Car{Name: "BMW", Year: 2000}
	require.NoError(t, s.Save(ctx, car))
	require.NoError(t, s.Flush(ctx))

	car.Year = 2010
	require.NoError(t, s.Flush(ctx))

	var year int
	require.NoError(t, f.Conn().QueryRow(ctx, `SELECT year FROM cars WHERE id = ?`, car.Id).Scan(&year))
	assert.Equal(t, 2010, year)

	require.NoError(t, s.Delete(ctx, car))
	require.NoError(t, s.Flush(ctx))
	assert.Equal(t, 0, countCars(t, f))
	assert.Equal(t, 0, s.Tracked())
}

func TestDelete_PendingInsertIsDropped(t *testing.T) {
	ctx := context.Background()
	f := openTestFactory(t)
	s := f.NewSession()

	car := &Car{Name: "BMW", Year: 2000}
	require.NoError(t, s.Save(ctx, car))
	require.NoError(t, s.Delete(ctx, car))
	require.NoError(t, s.Flush(ctx))

	assert.Equal(t, 0, countCars(t, f))
}

func TestSave_RejectsUnmappedValues(t *testing.T) {
	ctx := context.Background()
	s := openTestFactory(t).NewSession()

	type Truck struct{ Id int }

	assert.Error(t, s.Save(ctx, Car{Name: "by value"}))
	assert.Error(t, s.Save(ctx, (*Car)(nil)))

	var entityErr *engine.UnknownEntityError
	assert.True(t, errors.As(s.Save(ctx, &Truck{}), &entityErr))
}

// ============================================================
// QUERIES
// ============================================================

func TestQuery_Parameters(t *testing.T) {
	s := openTestFactory(t).NewSession()

	pq, err := s.CreateQuery("DELETE Car entity WHERE entity.Id = :id")
	require.NoError(t, err)
	q := pq.(*Query)
	assert.Equal(t, `DELETE FROM "cars" WHERE "id" = ?`, q.SQL())

	var paramErr *engine.ParameterError
	require.True(t, errors.As(q.SetParameter("name", "BMW"), &paramErr))
	assert.Equal(t, "name", paramErr.Name)

	_, err = q.ExecuteUpdate(context.Background())
	require.True(t, errors.As(err, &paramErr))
	assert.Equal(t, "not bound", paramErr.Reason)

	require.NoError(t, q.SetParameter("id", 1))
	n, err := q.ExecuteUpdate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestCreateQuery_SyntaxError(t *testing.T) {
	s := openTestFactory(t).NewSession()

	_, err := s.CreateQuery("UPDATE Car entity WHERE entity.Id = :id")

	var stmtErr *engine.StatementError
	assert.True(t, errors.As(err, &stmtErr))
}

// ============================================================
// ERRORS, LOGGING, DEBUG
// ============================================================

func TestFlush_UniqueViolation(t *testing.T) {
	ctx := context.Background()
	s := openTestFactory(t).NewSession()

	require.NoError(t, s.Save(ctx, &Car{Name: "BMW", Year: 2000}))
	require.NoError(t, s.Save(ctx, &Car{Name: "BMW", Year: 2001}))

	err := s.Flush(ctx)

	var uniqueErr *engine.UniqueConstraintError
	require.True(t, errors.As(err, &uniqueErr))
	assert.Equal(t, "name", uniqueErr.Field)
	assert.Equal(t, "BMW", uniqueErr.Value)
	assert.Equal(t, "cars", uniqueErr.Table)

	var liteErr sqlite3.Error
	assert.True(t, errors.As(err, &liteErr), "driver error reachable through Unwrap")
}

func TestBulkUpdate_NotNullViolation(t *testing.T) {
	ctx := context.Background()
	s := openTestFactory(t).NewSession()
	require.NoError(t, s.Save(ctx, &Car{Name: "BMW", Year: 2000}))

	_, err := mutation.Update[Car](s).SetProperty(engine.Prop("Name"), nil).Execute(ctx)

	var notNull *engine.NotNullError
	require.True(t, errors.As(err, &notNull))
	assert.Equal(t, "name", notNull.Field)
}

func TestSession_Logging(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.DebugLevel)
	s := openTestFactory(t, WithLogger(zap.New(core))).NewSession()

	require.NoError(t, s.Save(ctx, &Car{Name: "BMW", Year: 2000}))
	_, err := mutation.Delete[Car](s).Execute(ctx)
	require.NoError(t, err)

	executed := logs.FilterMessage("bulk statement executed").All()
	require.Len(t, executed, 1)
	fields := executed[0].ContextMap()
	assert.Equal(t, "Car", fields["entity"])
	assert.Equal(t, int64(1), fields["affected"])
	assert.Equal(t, s.ID(), fields["session"])

	assert.Equal(t, 1, logs.FilterMessage("flushed").Len())
	assert.Equal(t, 1, logs.FilterMessage("cleared").Len())
}

func TestSession_DebugEcho(t *testing.T) {
	ctx := context.Background()
	var out bytes.Buffer
	debug := &engine.DebugContext{Level: engine.DebugSQL, Writer: &out}
	s := openTestFactory(t, WithDebug(debug)).NewSession()

	_, err := mutation.Update[Car](s).SetProperty(engine.Prop("Year"), 2001).Execute(ctx)
	require.NoError(t, err)

	assert.Contains(t, out.String(), `UPDATE "cars" SET "year" = ?`)
}

// ============================================================
// ENGINE WIRING
// ============================================================

func TestEngine_WithSQLiteSessions(t *testing.T) {
	ctx := context.Background()
	f := openTestFactory(t)
	eng := engine.NewEngine(f.Schema(), f)

	session, err := eng.OpenSession(ctx)
	require.NoError(t, err)
	require.NoError(t, session.(*Session).Save(ctx, &Car{Name: "BMW", Year: 2000}))

	n, err := eng.Update(session, "cars").
		SetProperty(engine.Prop("Year"), 2001).
		Where(engine.Prop("Name"), "BMW").
		Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = engine.BeginDelete(session, "Car").Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
