package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/condormesh/artifact"
	"github.com/hupe1980/condormesh/core"
	"github.com/hupe1980/condormesh/memory"
	"github.com/hupe1980/condormesh/session"
)

func newTestContext(t *testing.T) *core.Context {
	t.Helper()

	c, err := core.NewContext(context.Background(), "alice", core.ContextConfig{
		Sessions:  session.NewInMemoryStore(),
		Memory:    memory.NewInMemoryStore(),
		Artifacts: artifact.NewInMemoryStore(),
	})
	require.NoError(t, err)
	return c
}

func echoTool() *FunctionTool {
	return NewFunctionTool(
		"echo",
		"Echo the message back.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"message": map[string]any{"type": "string"},
			},
			"required": []string{"message"},
		},
		func(c *core.Context, args map[string]any) (any, error) {
			return args["message"], nil
		},
	)
}

func TestFunctionTool_Call(t *testing.T) {
	c := newTestContext(t)

	result, err := echoTool().Call(c, map[string]any{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	c := newTestContext(t)

	_, err := echoTool().Call(c, map[string]any{})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
	assert.Equal(t, "echo", toolErr.Tool)
}

func TestFunctionTool_TypeMismatch(t *testing.T) {
	c := newTestContext(t)

	_, err := echoTool().Call(c, map[string]any{"message": 42})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestFunctionTool_ExecutionErrorWrapping(t *testing.T) {
	c := newTestContext(t)

	failing := NewFunctionTool("boom", "Always fails.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(c *core.Context, args map[string]any) (any, error) {
			return nil, errors.New("kaput")
		},
	)

	_, err := failing.Call(c, map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)
	assert.Equal(t, "kaput", toolErr.Message)
}

func TestFunctionTool_ToolErrorPassthrough(t *testing.T) {
	c := newTestContext(t)

	custom := NewToolError("picky", "bad status", "VALIDATION_ERROR")
	failing := NewFunctionTool("picky", "Returns a custom error.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(c *core.Context, args map[string]any) (any, error) {
			return nil, custom
		},
	)

	_, err := failing.Call(c, map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Same(t, custom, toolErr)
}

type echoArgs struct {
	Message string `json:"message" description:"Message to echo"`
	Limit   *int   `json:"limit" description:"Optional limit"`
}

func TestNewFunctionToolFromStruct(t *testing.T) {
	tl := NewFunctionToolFromStruct("echo", "Echo.", echoArgs{},
		func(c *core.Context, args map[string]any) (any, error) {
			return args["message"], nil
		},
	)

	props, ok := tl.Parameters()["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "message")
	assert.Contains(t, props, "limit")

	required, ok := tl.Parameters()["required"].([]string)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"message"}, required)

	// The struct-derived []string required list must be enforced too.
	c := newTestContext(t)
	_, err := tl.Call(c, map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "VALIDATION_ERROR", toolErr.Code)
}

func TestRegistry_RegisterAndNames(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(echoTool())
	r.Register(NewFunctionTool("alpha", "First.", map[string]any{"type": "object", "properties": map[string]any{}}, nil))

	assert.Equal(t, []string{"alpha", "echo"}, r.Names())

	_, ok := r.Get("echo")
	assert.True(t, ok)
	_, ok = r.Get("missing")
	assert.False(t, ok)
}

func TestRegistry_ExecuteRecordsTurn(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(echoTool())
	c := newTestContext(t)

	result, err := r.Execute(c, "echo", map[string]any{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", result)

	turns, err := c.History(0)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, core.RoleTool, turns[0].Role)
	assert.Contains(t, string(turns[0].Content), `"echo"`)
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	r := NewRegistry(nil)
	c := newTestContext(t)

	_, err := r.Execute(c, "nope", nil)
	assert.ErrorIs(t, err, core.ErrNotFound)

	turns, err := c.History(0)
	require.NoError(t, err)
	require.Len(t, turns, 1, "unknown tool calls still land in history")
}

func TestRegistry_ExecuteRecordsFailure(t *testing.T) {
	r := NewRegistry(nil)
	r.Register(NewFunctionTool("boom", "Always fails.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(c *core.Context, args map[string]any) (any, error) {
			return nil, errors.New("kaput")
		},
	))
	c := newTestContext(t)

	_, err := r.Execute(c, "boom", map[string]any{})
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "EXECUTION_ERROR", toolErr.Code)

	turns, err := c.History(0)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Contains(t, string(turns[0].Content), "kaput")
}
