package tool

import (
	"fmt"
	"time"

	"github.com/hupe1980/condormesh/condor"
	"github.com/hupe1980/condormesh/core"
)

// RegisterCondorTools registers the built-in scheduler, memory, artifact and
// session tools on the registry.
func RegisterCondorTools(r *Registry) {
	r.Register(NewListJobsTool())
	r.Register(NewJobStatusTool())
	r.Register(NewJobSummaryTool())
	r.Register(NewRefreshJobsTool())
	r.Register(NewRememberTool())
	r.Register(NewRecallMemoryTool())
	r.Register(NewSaveReportTool())
	r.Register(NewLoadReportTool())
	r.Register(NewSessionHistoryTool())
	r.Register(NewSessionSummaryTool())
}

// NewListJobsTool lists jobs from the cached dataset, optionally filtered by
// owner and/or status name.
func NewListJobsTool() *FunctionTool {
	return NewFunctionTool(
		"list_jobs",
		"List jobs in the queue, optionally filtered by owner and/or status.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"owner":  map[string]any{"type": "string", "description": "Filter by job owner"},
				"status": map[string]any{"type": "string", "description": "Filter by status name (idle, running, held, ...)"},
				"limit":  map[string]any{"type": "integer", "description": "Maximum number of jobs to return"},
			},
		},
		func(c *core.Context, args map[string]any) (any, error) {
			rows, fetchedAt, err := c.Dataset().Rows(0)
			if err != nil {
				return nil, err
			}

			owner, _ := args["owner"].(string)
			statusName, _ := args["status"].(string)
			limit := argInt(args, "limit", 0)

			statusCode := -1
			if statusName != "" {
				code, ok := condor.StatusCode(statusName)
				if !ok {
					return nil, NewToolError("list_jobs", fmt.Sprintf("unknown status %q", statusName), "VALIDATION_ERROR")
				}
				statusCode = code
			}

			var jobs []core.Row
			for _, row := range rows {
				if src, _ := row["data_source"].(string); src != "current_queue" {
					continue
				}
				if owner != "" {
					if o, _ := row["owner"].(string); o != owner {
						continue
					}
				}
				if statusCode >= 0 && rowInt(row, "jobstatus") != int64(statusCode) {
					continue
				}
				jobs = append(jobs, row)
				if limit > 0 && len(jobs) >= limit {
					break
				}
			}

			// remembered for "what did I look at recently" follow-ups
			_ = c.SetState("last_query", map[string]any{"owner": owner, "status": statusName})

			return map[string]any{
				"jobs":       jobs,
				"count":      len(jobs),
				"fetched_at": fetchedAt.Format(time.RFC3339),
			}, nil
		},
	)
}

// NewJobStatusTool returns details for one job by cluster id.
func NewJobStatusTool() *FunctionTool {
	return NewFunctionTool(
		"get_job_status",
		"Get status and details for a specific job cluster.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"cluster_id": map[string]any{"type": "integer", "description": "HTCondor cluster id"},
			},
			"required": []string{"cluster_id"},
		},
		func(c *core.Context, args map[string]any) (any, error) {
			clusterID := argInt(args, "cluster_id", -1)

			rows, _, err := c.Dataset().Rows(0)
			if err != nil {
				return nil, err
			}

			var match core.Row
			for _, row := range rows {
				if rowInt(row, "clusterid") != int64(clusterID) {
					continue
				}
				// queue rows win over their historical duplicates
				if src, _ := row["data_source"].(string); src == "current_queue" || match == nil {
					match = row
				}
			}
			if match == nil {
				return nil, fmt.Errorf("job cluster %d: %w", clusterID, core.ErrNotFound)
			}

			_ = c.SetState("last_viewed_job", clusterID)

			return map[string]any{
				"job":    match,
				"status": condor.StatusName(int(rowInt(match, "jobstatus"))),
			}, nil
		},
	)
}

// NewJobSummaryTool aggregates current queue jobs by status.
func NewJobSummaryTool() *FunctionTool {
	return NewFunctionTool(
		"job_summary",
		"Summarize the current queue: job counts per status, optionally per owner.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"owner": map[string]any{"type": "string", "description": "Restrict the summary to one owner"},
			},
		},
		func(c *core.Context, args map[string]any) (any, error) {
			rows, fetchedAt, err := c.Dataset().Rows(0)
			if err != nil {
				return nil, err
			}

			owner, _ := args["owner"].(string)
			counts := map[string]int{}
			total := 0
			for _, row := range rows {
				if src, _ := row["data_source"].(string); src != "current_queue" {
					continue
				}
				if owner != "" {
					if o, _ := row["owner"].(string); o != owner {
						continue
					}
				}
				counts[condor.StatusName(int(rowInt(row, "jobstatus")))]++
				total++
			}

			return map[string]any{
				"total":      total,
				"by_status":  counts,
				"fetched_at": fetchedAt.Format(time.RFC3339),
			}, nil
		},
	)
}

// NewRefreshJobsTool forces a dataset refresh.
func NewRefreshJobsTool() *FunctionTool {
	return NewFunctionTool(
		"refresh_jobs",
		"Force a refresh of the cached job dataset from the scheduler.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(c *core.Context, args map[string]any) (any, error) {
			rows, fetchedAt, err := c.Dataset().Refresh()
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"rows":       len(rows),
				"fetched_at": fetchedAt.Format(time.RFC3339),
			}, nil
		},
	)
}

// NewRememberTool stores a fact in the caller's (or global) memory.
func NewRememberTool() *FunctionTool {
	return NewFunctionTool(
		"remember",
		"Store a key/value fact in memory for later recall across sessions.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key":    map[string]any{"type": "string"},
				"value":  map[string]any{"type": "string"},
				"global": map[string]any{"type": "boolean", "description": "Share the fact with all users"},
			},
			"required": []string{"key", "value"},
		},
		func(c *core.Context, args map[string]any) (any, error) {
			key, _ := args["key"].(string)
			value, _ := args["value"].(string)
			global, _ := args["global"].(bool)
			if err := c.Memory().Remember(key, value, global); err != nil {
				return nil, err
			}
			return map[string]any{"stored": key}, nil
		},
	)
}

// NewRecallMemoryTool searches remembered facts.
func NewRecallMemoryTool() *FunctionTool {
	return NewFunctionTool(
		"recall_memory",
		"Search remembered facts (user memory ranked before global) for a substring.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{"type": "string"},
			},
			"required": []string{"query"},
		},
		func(c *core.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			hits, err := c.Memory().Search(query)
			if err != nil {
				return nil, err
			}
			results := make([]map[string]any, 0, len(hits))
			for _, h := range hits {
				results = append(results, map[string]any{
					"scope": h.Scope.String(),
					"key":   h.Key,
					"value": h.Value,
				})
			}
			return map[string]any{"results": results}, nil
		},
	)
}

// NewSaveReportTool persists a named report artifact.
func NewSaveReportTool() *FunctionTool {
	return NewFunctionTool(
		"save_report",
		"Save a named report for later retrieval; session_scoped ties it to this session.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":           map[string]any{"type": "string"},
				"content":        map[string]any{"type": "string"},
				"session_scoped": map[string]any{"type": "boolean"},
			},
			"required": []string{"name", "content"},
		},
		func(c *core.Context, args map[string]any) (any, error) {
			name, _ := args["name"].(string)
			content, _ := args["content"].(string)
			sessionScoped, _ := args["session_scoped"].(bool)
			id, err := c.Artifacts().Save(name, []byte(content), sessionScoped)
			if err != nil {
				return nil, err
			}
			return map[string]any{"artifact_id": id, "name": name}, nil
		},
	)
}

// NewLoadReportTool loads a previously saved report artifact.
func NewLoadReportTool() *FunctionTool {
	return NewFunctionTool(
		"load_report",
		"Load a previously saved report by name.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"name":           map[string]any{"type": "string"},
				"session_scoped": map[string]any{"type": "boolean"},
			},
			"required": []string{"name"},
		},
		func(c *core.Context, args map[string]any) (any, error) {
			name, _ := args["name"].(string)
			sessionScoped, _ := args["session_scoped"].(bool)
			art, err := c.Artifacts().Load(name, sessionScoped)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"name":       art.Name,
				"content":    string(art.Payload),
				"created_at": art.Created.Format(time.RFC3339),
			}, nil
		},
	)
}

// NewSessionHistoryTool returns the recent conversation turns of the session.
func NewSessionHistoryTool() *FunctionTool {
	return NewFunctionTool(
		"session_history",
		"Return the session's recent conversation turns in order.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"limit": map[string]any{"type": "integer", "description": "Most recent N turns (default 20)"},
			},
		},
		func(c *core.Context, args map[string]any) (any, error) {
			limit := argInt(args, "limit", 20)
			turns, err := c.History(limit)
			if err != nil {
				return nil, err
			}
			res := make([]map[string]any, 0, len(turns))
			for _, t := range turns {
				res = append(res, map[string]any{
					"seq":       t.Seq,
					"role":      t.Role,
					"content":   string(t.Content),
					"timestamp": t.Timestamp.Format(time.RFC3339),
				})
			}
			return map[string]any{"turns": res}, nil
		},
	)
}

// NewSessionSummaryTool summarizes the session and the job clusters it
// mentioned.
func NewSessionSummaryTool() *FunctionTool {
	return NewFunctionTool(
		"session_summary",
		"Summarize the session: turn counts, time range, roles and referenced job clusters.",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(c *core.Context, args map[string]any) (any, error) {
			sum, err := c.Summarize()
			if err != nil {
				return nil, err
			}
			refs, err := c.JobReferences()
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"session_id":     c.SessionID(),
				"turn_count":     sum.TurnCount,
				"first_turn_at":  sum.FirstTurnAt.Format(time.RFC3339),
				"last_turn_at":   sum.LastTurnAt.Format(time.RFC3339),
				"distinct_roles": sum.DistinctRoles,
				"job_references": refs,
			}, nil
		},
	)
}

// argInt reads an integer argument tolerating the float64 produced by JSON
// decoding.
func argInt(args map[string]any, key string, def int) int {
	switch v := args[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// rowInt reads a numeric ClassAd attribute from a row.
func rowInt(row core.Row, key string) int64 {
	switch v := row[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return -1
	}
}
