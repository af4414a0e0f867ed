package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/toolpane/toolpane/internal/invoke"
	"github.com/toolpane/toolpane/pkg/types"
)

func (b *Binder) sqlFunc(c call, h *types.SQLHandler) invoke.Func {
	return func(ctx context.Context, params map[string]any) (any, error) {
		if b.db == nil {
			return nil, fmt.Errorf("sql functions are not available: no database registry configured")
		}
		conn, err := b.db.Get(h.DSN)
		if err != nil {
			return nil, err
		}
		conn = conn.WithContext(ctx)
		args := namedArgs(params)

		if h.Exec {
			res := conn.Exec(h.Query, queryArgs(h.Query, args)...)
			if res.Error != nil {
				return nil, fmt.Errorf("failed to execute statement for %s: %w", c, res.Error)
			}
			return map[string]any{"rowsAffected": res.RowsAffected}, nil
		}

		var rows []map[string]any
		if err := conn.Raw(h.Query, queryArgs(h.Query, args)...).Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to run query for %s: %w", c, err)
		}
		if rows == nil {
			rows = []map[string]any{}
		}

		if h.One {
			if len(rows) == 0 {
				return nil, nil
			}
			return rows[0], nil
		}

		if h.CountQuery == "" {
			return rows, nil
		}
		var total int64
		if err := conn.Raw(h.CountQuery, queryArgs(h.CountQuery, args)...).Scan(&total).Error; err != nil {
			return nil, fmt.Errorf("failed to run count query for %s: %w", c, err)
		}
		return map[string]any{"items": rows, "totalItems": total}, nil
	}
}

// namedArgs flattens the parameter bag into named query arguments.
// Nested objects are joined with underscores, eg- {"changes": {"name": "x"}} binds @changes_name.
// When page and pageSize are present, @offset and @limit are derived from them (pages start at 1).
func namedArgs(params map[string]any) map[string]any {
	args := make(map[string]any)
	flatten("", params, args)

	pageSize, hasSize := toInt(params["pageSize"])
	page, hasPage := toInt(params["page"])
	if hasSize {
		if _, ok := args["limit"]; !ok {
			args["limit"] = pageSize
		}
		if _, ok := args["offset"]; !ok && hasPage {
			args["offset"] = max(page-1, 0) * pageSize
		}
	}
	return args
}

func flatten(prefix string, in map[string]any, out map[string]any) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "_" + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// queryArgs only passes named arguments to queries that reference them.
func queryArgs(query string, args map[string]any) []any {
	if !strings.Contains(query, "@") {
		return nil
	}
	return []any{args}
}
