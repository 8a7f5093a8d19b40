// File: internal/domain/ports/adapter/telegram.go
package adapter

import (
	"context"
	"time"
)

// Messenger delivers chat messages and reports whether the Bot API accepted them.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) bool
	SendPhoto(ctx context.Context, chatID int64, caption, photoPath string) bool
}

// JobLocker serializes reconciler runs across processes.
type JobLocker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}
