package core_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/condormesh/artifact"
	"github.com/hupe1980/condormesh/core"
	"github.com/hupe1980/condormesh/memory"
	"github.com/hupe1980/condormesh/session"
)

// stubProvider is a canned DatasetProvider for facade tests.
type stubProvider struct {
	rows      []core.Row
	fetchedAt time.Time
	err       error
	refreshes int
}

func (p *stubProvider) Get(ctx context.Context, maxStaleness time.Duration) ([]core.Row, time.Time, error) {
	return p.rows, p.fetchedAt, p.err
}

func (p *stubProvider) Refresh(ctx context.Context) ([]core.Row, time.Time, error) {
	p.refreshes++
	return p.rows, p.fetchedAt, p.err
}

func (p *stubProvider) Invalidate() {}

func testConfig() core.ContextConfig {
	return core.ContextConfig{
		Sessions:  session.NewInMemoryStore(),
		Memory:    memory.NewInMemoryStore(),
		Artifacts: artifact.NewInMemoryStore(),
		Dataset:   &stubProvider{fetchedAt: time.Now()},
	}
}

func TestNewContext_Validation(t *testing.T) {
	_, err := core.NewContext(context.Background(), "alice", core.ContextConfig{})
	assert.Error(t, err, "missing session store must be rejected")

	_, err = core.NewContext(context.Background(), "", testConfig())
	assert.Error(t, err, "empty owner must be rejected")
}

func TestNewContext_CreatesAndResumesSession(t *testing.T) {
	cfg := testConfig()

	first, err := core.NewContext(context.Background(), "alice", cfg)
	require.NoError(t, err)
	assert.Equal(t, "alice", first.OwnerID())
	assert.NotEmpty(t, first.SessionID())

	// Without activity the same session is resumed.
	second, err := core.NewContext(context.Background(), "alice", cfg)
	require.NoError(t, err)
	assert.Equal(t, first.SessionID(), second.SessionID())

	// A different owner gets their own session.
	other, err := core.NewContext(context.Background(), "bob", cfg)
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID(), other.SessionID())
}

func TestNewContext_FreshSession(t *testing.T) {
	cfg := testConfig()

	first, err := core.NewContext(context.Background(), "alice", cfg)
	require.NoError(t, err)

	fresh, err := core.NewContext(context.Background(), "alice", cfg, core.WithFreshSession())
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID(), fresh.SessionID())
}

func TestNewContext_ExplicitSessionID(t *testing.T) {
	cfg := testConfig()

	first, err := core.NewContext(context.Background(), "alice", cfg)
	require.NoError(t, err)

	resumed, err := core.NewContext(context.Background(), "alice", cfg, core.WithSessionID(first.SessionID()))
	require.NoError(t, err)
	assert.Equal(t, first.SessionID(), resumed.SessionID())

	_, err = core.NewContext(context.Background(), "alice", cfg, core.WithSessionID("missing"))
	assert.ErrorIs(t, err, core.ErrNotFound)

	// Another owner's session must not resolve.
	_, err = core.NewContext(context.Background(), "bob", cfg, core.WithSessionID(first.SessionID()))
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestNewContext_SeedsDefaultPreferences(t *testing.T) {
	cfg := testConfig()

	_, err := core.NewContext(context.Background(), "alice", cfg)
	require.NoError(t, err)

	entry, err := cfg.Memory.Get(core.UserScope("alice"), "preferences")
	require.NoError(t, err)

	var prefs map[string]any
	require.NoError(t, json.Unmarshal([]byte(entry.Value), &prefs))
	assert.Equal(t, float64(10), prefs["default_job_limit"])
	assert.Equal(t, "table", prefs["output_format"])
	assert.Equal(t, float64(30), prefs["auto_refresh_interval"])
}

func TestNewContext_DoesNotOverwritePreferences(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Memory.Put(core.UserScope("alice"), "preferences", `{"output_format":"json"}`))

	c, err := core.NewContext(context.Background(), "alice", cfg, core.WithFreshSession())
	require.NoError(t, err)
	_ = c

	entry, err := cfg.Memory.Get(core.UserScope("alice"), "preferences")
	require.NoError(t, err)
	assert.JSONEq(t, `{"output_format":"json"}`, entry.Value)
}

func TestContext_FinishRecordsCall(t *testing.T) {
	cfg := testConfig()
	c, err := core.NewContext(context.Background(), "alice", cfg)
	require.NoError(t, err)

	err = c.Finish("list_jobs", map[string]any{"owner": "alice"}, nil)
	require.NoError(t, err)

	turns, err := c.History(0)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, core.RoleTool, turns[0].Role)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(turns[0].Content, &rec))
	assert.Equal(t, "list_jobs", rec["op"])
	assert.NotContains(t, rec, "error")
}

func TestContext_FinishRecordsFailure(t *testing.T) {
	cfg := testConfig()
	c, err := core.NewContext(context.Background(), "alice", cfg)
	require.NoError(t, err)

	callErr := assert.AnError
	err = c.Finish("get_job_status", map[string]any{"cluster_id": 1234567}, callErr)
	assert.Equal(t, callErr, err, "the call error must be returned unchanged")

	turns, err := c.History(0)
	require.NoError(t, err)
	require.Len(t, turns, 1, "failed calls still land in history")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(turns[0].Content, &rec))
	assert.Equal(t, callErr.Error(), rec["error"])
}

func TestContext_JobReferences(t *testing.T) {
	cfg := testConfig()
	c, err := core.NewContext(context.Background(), "alice", cfg)
	require.NoError(t, err)

	_, err = c.RecordTurn(core.RoleUser, map[string]string{"text": "why is 1234567 held?"})
	require.NoError(t, err)
	_, err = c.RecordTurn(core.RoleAgent, map[string]string{"text": "1234567 hit a memory limit"})
	require.NoError(t, err)
	_, err = c.RecordTurn(core.RoleUser, map[string]string{"text": "compare it with 7654321 then"})
	require.NoError(t, err)
	_, err = c.RecordTurn(core.RoleUser, map[string]string{"text": "job 42 is fine"}) // too short to be a cluster id
	require.NoError(t, err)

	refs, err := c.JobReferences()
	require.NoError(t, err)
	assert.Equal(t, []string{"7654321", "1234567"}, refs, "deduplicated, most recent mention first")
}

func TestContext_StateRoundTrip(t *testing.T) {
	cfg := testConfig()
	c, err := core.NewContext(context.Background(), "alice", cfg)
	require.NoError(t, err)

	require.NoError(t, c.SetState("last_query", "held jobs"))

	v, ok := c.GetState("last_query")
	assert.True(t, ok)
	assert.Equal(t, "held jobs", v)

	// The mutation is durable, not just a local mirror.
	stored, err := cfg.Sessions.Get(c.SessionID())
	require.NoError(t, err)
	assert.Equal(t, "held jobs", stored.State["last_query"])
}

func TestContext_MemoryAccessorScoping(t *testing.T) {
	cfg := testConfig()
	c, err := core.NewContext(context.Background(), "alice", cfg)
	require.NoError(t, err)

	require.NoError(t, c.Memory().Remember("favorite_cluster", "cms-prod", false))
	require.NoError(t, c.Memory().Remember("maintenance", "sunday 2am", true))

	entry, err := c.Memory().Recall("favorite_cluster", false)
	require.NoError(t, err)
	assert.Equal(t, core.UserScope("alice"), entry.Scope)

	entry, err = c.Memory().Recall("maintenance", true)
	require.NoError(t, err)
	assert.Equal(t, core.GlobalScope, entry.Scope)

	// Another caller sees the global fact but not the private one.
	other, err := core.NewContext(context.Background(), "bob", cfg)
	require.NoError(t, err)

	_, err = other.Memory().Recall("favorite_cluster", false)
	assert.ErrorIs(t, err, core.ErrNotFound)

	hits, err := other.Memory().Search("sunday")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, core.GlobalScope, hits[0].Scope)
}

func TestContext_ArtifactAccessorScoping(t *testing.T) {
	cfg := testConfig()
	c, err := core.NewContext(context.Background(), "alice", cfg)
	require.NoError(t, err)

	_, err = c.Artifacts().Save("user-report", []byte("u"), false)
	require.NoError(t, err)
	_, err = c.Artifacts().Save("session-report", []byte("s"), true)
	require.NoError(t, err)

	// A fresh session sees the user artifact but not the old session's one.
	fresh, err := core.NewContext(context.Background(), "alice", cfg, core.WithFreshSession())
	require.NoError(t, err)

	_, err = fresh.Artifacts().Load("user-report", false)
	require.NoError(t, err)

	_, err = fresh.Artifacts().Load("session-report", true)
	assert.ErrorIs(t, err, core.ErrNotFound)

	infos, err := c.Artifacts().List(true)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "session-report", infos[0].Name)
}

func TestContext_UnconfiguredServices(t *testing.T) {
	cfg := core.ContextConfig{Sessions: session.NewInMemoryStore()}
	c, err := core.NewContext(context.Background(), "alice", cfg)
	require.NoError(t, err)

	_, _, err = c.Dataset().Rows(0)
	assert.Error(t, err)

	err = c.Memory().Remember("k", "v", false)
	assert.Error(t, err)

	_, err = c.Artifacts().Load("x", false)
	assert.Error(t, err)
}

func TestContext_DatasetAccessor(t *testing.T) {
	provider := &stubProvider{
		rows:      []core.Row{{"clusterid": 1234567}},
		fetchedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	cfg := testConfig()
	cfg.Dataset = provider

	c, err := core.NewContext(context.Background(), "alice", cfg)
	require.NoError(t, err)

	rows, fetchedAt, err := c.Dataset().Rows(0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, provider.fetchedAt, fetchedAt)

	_, _, err = c.Dataset().Refresh()
	require.NoError(t, err)
	assert.Equal(t, 1, provider.refreshes)
}
