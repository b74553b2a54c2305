// Package retry provides exponential backoff retry with jitter for calls to
// remote collaborators.
//
//	err := retry.Do(ctx, &retry.Config{MaxRetries: 3}, func(ctx context.Context) error {
//	    return counter.Increment(ctx, userID, interfaceID)
//	}, retry.WithShouldRetry(retry.IsTransient))
package retry
