package record

import (
	"context"
	"testing"
	"time"

	"github.com/roach88/rowkit/internal/coerce"
	"github.com/roach88/rowkit/internal/testutil"
)

var fixedNow = time.Date(2024, 3, 9, 14, 5, 7, 123456000, time.UTC)

// userColumns is the column list of the fake "users" table.
var userColumns = []string{"id", "name", "email", "age", "score", "active", "tags", "create_time", "update_time"}

// createTestRegistry returns a registry with a fixed clock, UTC dates and a
// fake connection holding "users", "posts", "profiles", "roles" and
// "user_roles" tables.
func createTestRegistry(t *testing.T) (*Registry, *fakeConn, *testutil.FixedClock) {
	t.Helper()
	clock := testutil.NewFixedClock(fixedNow)
	conv := coerce.NewConverter()
	conv.Location = time.UTC
	conv.Now = clock.Now

	conn := newFakeConn().
		table("users", userColumns...).
		table("posts", "id", "user_id", "title").
		table("profiles", "id", "user_id", "city", "bio").
		table("roles", "id", "name").
		table("user_roles", "id", "user_id", "role_id")

	reg := NewRegistry(conv)
	reg.Use(conn)
	return reg, conn, clock
}

// registerModel registers mt after applying opts, failing the test on error.
func registerModel(t *testing.T, reg *Registry, mt *ModelType, opts ...func(*ModelType)) *ModelType {
	t.Helper()
	for _, opt := range opts {
		opt(mt)
	}
	if err := reg.Register(mt); err != nil {
		t.Fatalf("Register(%s) failed: %v", mt.Name, err)
	}
	return mt
}

// usersModel returns a plain "User" type over the users table.
func usersModel() *ModelType {
	return &ModelType{Name: "User", Table: "users"}
}

// hookLog records hook firings in order.
type hookLog struct {
	fired []Hook
}

func (l *hookLog) attach(t *testing.T, mt *ModelType, hooks ...Hook) {
	t.Helper()
	for _, h := range hooks {
		if err := mt.On(h, func(_ context.Context, _ *Record) bool {
			l.fired = append(l.fired, h)
			return true
		}); err != nil {
			t.Fatalf("On(%s): %v", h, err)
		}
	}
}
