package repository

import (
	"time"

	"github.com/segfault/civicgrid/backend/internal/graph"
)

// The graph driver surfaces property values as any; these helpers coerce
// them into the domain types without panicking on absent or mistyped
// fields.

func decodeString(rec graph.Record, key string) string {
	switch v := rec[key].(type) {
	case string:
		return v
	default:
		return ""
	}
}

func decodeFloat(rec graph.Record, key string) float64 {
	switch v := rec[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func decodeInt(rec graph.Record, key string) int {
	switch v := rec[key].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

func decodeTime(rec graph.Record, key string) time.Time {
	switch v := rec[key].(type) {
	case time.Time:
		return v
	case string:
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
