package email

import (
	"context"
	"time"
)

func newEmailContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	// Detached so a finished scheduler run does not abort an in-flight send.
	parent = context.WithoutCancel(parent)
	return context.WithTimeout(parent, timeout)
}
