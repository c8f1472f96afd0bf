package services

import "context"

// persistentContext detaches ctx from caller cancellation for work that must
// finish after a commit, such as notifications.
func persistentContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return context.WithoutCancel(ctx)
}
