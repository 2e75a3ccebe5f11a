package condormesh

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/condormesh/core"
	"github.com/hupe1980/condormesh/internal/testutil"
)

func newTestService() *Service {
	return New(func(o *Options) {
		o.Fetch = func(ctx context.Context) ([]core.Row, error) {
			return []core.Row{
				testutil.JobRow(1234567, "alice", 2),
				testutil.JobRow(1234568, "bob", 1),
			}, nil
		}
	})
}

func TestNew_RegistersBuiltinTools(t *testing.T) {
	svc := newTestService()
	assert.Contains(t, svc.Tools().Names(), "list_jobs")
	assert.Contains(t, svc.Tools().Names(), "session_summary")
	assert.NotNil(t, svc.Dataset())
}

func TestService_Execute(t *testing.T) {
	svc := newTestService()

	result, err := svc.Execute(context.Background(), "alice", "list_jobs", map[string]any{"owner": "alice"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.(map[string]any)["count"])
}

func TestService_ExecuteSharesSessionAcrossCalls(t *testing.T) {
	svc := newTestService()

	_, err := svc.Execute(context.Background(), "alice", "job_summary", map[string]any{})
	require.NoError(t, err)

	result, err := svc.Execute(context.Background(), "alice", "session_summary", map[string]any{})
	require.NoError(t, err)

	// The first call's recorded turn plus nothing else: both calls resolved
	// the same session, and session_summary ran before its own turn landed.
	assert.Equal(t, 1, result.(map[string]any)["turn_count"])
}

func TestService_FreshSessionOption(t *testing.T) {
	svc := newTestService()

	first, err := svc.NewContext(context.Background(), "alice")
	require.NoError(t, err)

	fresh, err := svc.NewContext(context.Background(), "alice", core.WithFreshSession())
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID(), fresh.SessionID())
}

func TestService_UnknownToolRecordsTurn(t *testing.T) {
	svc := newTestService()

	_, err := svc.Execute(context.Background(), "alice", "nope", nil)
	assert.ErrorIs(t, err, core.ErrNotFound)

	c, err := svc.NewContext(context.Background(), "alice")
	require.NoError(t, err)
	turns, err := c.History(0)
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}
