package obs

import "context"

type contextKey string

const (
	queryIDKey   contextKey = "query_id"
	operationKey contextKey = "operation"
)

// CallInfo carries trace identifiers through a request context for a
// single mdb call (insert, fetch, fetch_range, search, ...).
type CallInfo struct {
	QueryID   string
	Operation string
}

func WithCallInfo(ctx context.Context, info CallInfo) context.Context {
	if info.QueryID != "" {
		ctx = context.WithValue(ctx, queryIDKey, info.QueryID)
	}
	if info.Operation != "" {
		ctx = context.WithValue(ctx, operationKey, info.Operation)
	}
	return ctx
}

func CallInfoFromContext(ctx context.Context) CallInfo {
	info := CallInfo{}
	if v := ctx.Value(queryIDKey); v != nil {
		if id, ok := v.(string); ok {
			info.QueryID = id
		}
	}
	if v := ctx.Value(operationKey); v != nil {
		if op, ok := v.(string); ok {
			info.Operation = op
		}
	}
	return info
}
