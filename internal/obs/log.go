package obs

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"time"
)

var logger = log.New(os.Stdout, "", 0)

// LogEvent emits a single JSON line carrying level, event, the calling
// context's CallInfo (if set), and fields.
func LogEvent(ctx context.Context, level string, event string, fields map[string]any) {
	payload := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339),
		"level": level,
		"event": event,
	}

	info := CallInfoFromContext(ctx)
	if info.QueryID != "" {
		payload["query_id"] = info.QueryID
	}
	if info.Operation != "" {
		payload["operation"] = info.Operation
	}

	for key, value := range normalizeFields(fields) {
		payload[key] = value
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		logger.Printf("{\"level\":\"error\",\"event\":\"log_marshal_failed\",\"error\":%q}", err.Error())
		return
	}
	logger.Print(string(raw))
}

// LogCallStart logs the start of an mdb operation.
func LogCallStart(ctx context.Context, operation string, fields map[string]any) {
	LogEvent(ctx, "info", "call_start", mergeField(fields, "operation", operation))
}

// LogCallEnd logs the completion of an mdb operation with its latency and
// outcome.
func LogCallEnd(ctx context.Context, operation string, duration time.Duration, err error) {
	fields := map[string]any{
		"operation":  operation,
		"latency_ms": duration.Milliseconds(),
		"success":    err == nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	LogEvent(ctx, "info", "call_end", fields)
}

func mergeField(fields map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[key] = value
	return out
}

func normalizeFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		if err, ok := value.(error); ok {
			out[key] = err.Error()
			continue
		}
		out[key] = value
	}
	return out
}
