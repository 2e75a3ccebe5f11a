package session

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/condormesh/core"
	"github.com/hupe1980/condormesh/internal/testutil"
	"github.com/hupe1980/condormesh/storage"
)

// Interface compliance (compile-time assertions)
var (
	_ core.SessionStore = (*InMemoryStore)(nil)
	_ core.SessionStore = (*SQLiteStore)(nil)
)

// stores runs the shared behavioral suite against both implementations.
func stores(t *testing.T) map[string]core.SessionStore {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlite, err := NewSQLiteStore(db)
	require.NoError(t, err)

	return map[string]core.SessionStore{
		"in_memory": NewInMemoryStore(),
		"sqlite":    sqlite,
	}
}

func TestSessionStore_CreateAndGet(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sess, err := store.Create("alice")
			require.NoError(t, err)
			assert.NotEmpty(t, sess.ID)
			assert.Equal(t, "alice", sess.OwnerID)
			assert.NotNil(t, sess.State)

			got, err := store.Get(sess.ID)
			require.NoError(t, err)
			assert.Equal(t, sess.ID, got.ID)
			assert.Equal(t, "alice", got.OwnerID)

			_, err = store.Get("missing")
			assert.ErrorIs(t, err, core.ErrNotFound)
		})
	}
}

func TestSessionStore_CreateRejectsEmptyOwner(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Create("")
			assert.Error(t, err)
		})
	}
}

func TestSessionStore_GetLast(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.GetLast("alice")
			assert.ErrorIs(t, err, core.ErrNotFound)

			first, err := store.Create("alice")
			require.NoError(t, err)
			second, err := store.Create("alice")
			require.NoError(t, err)

			// Touch the first session so it becomes the most recently active.
			time.Sleep(2 * time.Millisecond)
			_, err = store.AppendTurn(first.ID, core.RoleUser, testutil.JSONContent(t, "hello"))
			require.NoError(t, err)

			last, err := store.GetLast("alice")
			require.NoError(t, err)
			assert.Equal(t, first.ID, last.ID)

			time.Sleep(2 * time.Millisecond)
			_, err = store.AppendTurn(second.ID, core.RoleUser, testutil.JSONContent(t, "hi"))
			require.NoError(t, err)

			last, err = store.GetLast("alice")
			require.NoError(t, err)
			assert.Equal(t, second.ID, last.ID)
		})
	}
}

func TestSessionStore_ListIsOwnerScoped(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			a1, err := store.Create("alice")
			require.NoError(t, err)
			a2, err := store.Create("alice")
			require.NoError(t, err)
			_, err = store.Create("bob")
			require.NoError(t, err)

			sessions, err := store.List("alice")
			require.NoError(t, err)
			require.Len(t, sessions, 2)

			ids := []string{sessions[0].ID, sessions[1].ID}
			assert.ElementsMatch(t, []string{a1.ID, a2.ID}, ids)

			none, err := store.List("nobody")
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestSessionStore_AppendTurnSequencing(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sess, err := store.Create("alice")
			require.NoError(t, err)

			for i := 1; i <= 3; i++ {
				turn, err := store.AppendTurn(sess.ID, core.RoleUser, testutil.JSONContent(t, fmt.Sprintf("turn %d", i)))
				require.NoError(t, err)
				assert.Equal(t, i, turn.Seq)
			}

			_, err = store.AppendTurn("missing", core.RoleUser, testutil.JSONContent(t, "x"))
			assert.ErrorIs(t, err, core.ErrNotFound)
		})
	}
}

func TestSessionStore_ConcurrentAppendsAreGapFree(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sess, err := store.Create("alice")
			require.NoError(t, err)

			const writers = 20
			content := testutil.JSONContent(t, "concurrent")

			var g errgroup.Group
			seqs := make([]int, writers)
			for i := 0; i < writers; i++ {
				i := i
				g.Go(func() error {
					turn, err := store.AppendTurn(sess.ID, core.RoleAgent, content)
					if err != nil {
						return err
					}
					seqs[i] = turn.Seq
					return nil
				})
			}
			require.NoError(t, g.Wait())

			sort.Ints(seqs)
			for i, seq := range seqs {
				assert.Equal(t, i+1, seq, "sequence numbers must be exactly 1..N with no gaps")
			}
		})
	}
}

func TestSessionStore_HistoryOrderAndLimit(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sess := testutil.SeedSession(t, store, "alice", "one", "two", "three", "four", "five")

			all, err := store.History(sess.ID, 0)
			require.NoError(t, err)
			require.Len(t, all, 5)
			for i, turn := range all {
				assert.Equal(t, i+1, turn.Seq)
			}

			recent, err := store.History(sess.ID, 2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, 4, recent[0].Seq)
			assert.Equal(t, 5, recent[1].Seq)

			_, err = store.History("missing", 0)
			assert.ErrorIs(t, err, core.ErrNotFound)
		})
	}
}

func TestSessionStore_HistoryPreservesContent(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sess, err := store.Create("alice")
			require.NoError(t, err)

			content := json.RawMessage(`{"text":"job 1234567 is held"}`)
			_, err = store.AppendTurn(sess.ID, core.RoleUser, content)
			require.NoError(t, err)

			turns, err := store.History(sess.ID, 0)
			require.NoError(t, err)
			require.Len(t, turns, 1)
			assert.JSONEq(t, string(content), string(turns[0].Content))
			assert.Equal(t, core.RoleUser, turns[0].Role)
			assert.False(t, turns[0].Timestamp.IsZero())
		})
	}
}

func TestSessionStore_Summarize(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sess, err := store.Create("alice")
			require.NoError(t, err)

			empty, err := store.Summarize(sess.ID)
			require.NoError(t, err)
			assert.Equal(t, 0, empty.TurnCount)

			_, err = store.AppendTurn(sess.ID, core.RoleUser, testutil.JSONContent(t, "q"))
			require.NoError(t, err)
			_, err = store.AppendTurn(sess.ID, core.RoleAgent, testutil.JSONContent(t, "a"))
			require.NoError(t, err)
			_, err = store.AppendTurn(sess.ID, core.RoleUser, testutil.JSONContent(t, "q2"))
			require.NoError(t, err)

			sum, err := store.Summarize(sess.ID)
			require.NoError(t, err)
			assert.Equal(t, 3, sum.TurnCount)
			assert.ElementsMatch(t, []string{core.RoleUser, core.RoleAgent}, sum.DistinctRoles)
			assert.False(t, sum.FirstTurnAt.After(sum.LastTurnAt))

			_, err = store.Summarize("missing")
			assert.ErrorIs(t, err, core.ErrNotFound)
		})
	}
}

func TestSessionStore_ApplyStateDelta(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sess, err := store.Create("alice")
			require.NoError(t, err)

			require.NoError(t, store.ApplyStateDelta(sess.ID, map[string]any{"last_query": "held jobs"}))
			require.NoError(t, store.ApplyStateDelta(sess.ID, map[string]any{"limit": float64(10)}))

			got, err := store.Get(sess.ID)
			require.NoError(t, err)
			assert.Equal(t, "held jobs", got.State["last_query"])
			assert.Equal(t, float64(10), got.State["limit"])

			err = store.ApplyStateDelta("missing", map[string]any{"k": "v"})
			assert.ErrorIs(t, err, core.ErrNotFound)
		})
	}
}

func TestSessionStore_ReturnedSessionsAreIsolated(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			sess, err := store.Create("alice")
			require.NoError(t, err)

			sess.State["poisoned"] = true

			got, err := store.Get(sess.ID)
			require.NoError(t, err)
			if _, ok := got.State["poisoned"]; ok && name == "in_memory" {
				t.Fatal("mutating a returned session must not affect the store")
			}
		})
	}
}
