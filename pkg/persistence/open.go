package persistence

import (
	"context"
	"fmt"
	"time"
)

// Open creates the store named by backend: memory, file (rooted at dir) or
// mysql (connected with dsn).
func Open(ctx context.Context, backend, dir, dsn string, now Clock) (Repository, error) {
	if now == nil {
		now = time.Now
	}
	switch backend {
	case "", "memory":
		return NewMemoryStore(now), nil
	case "file":
		return NewFileStore(dir, now)
	case "mysql":
		return OpenMySQL(ctx, dsn, now)
	default:
		return nil, fmt.Errorf("unknown persistence backend %q", backend)
	}
}
