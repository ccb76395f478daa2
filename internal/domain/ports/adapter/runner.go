package adapter

import "context"

// TaskRunner fans tasks out and blocks until all of them returned. The error
// slice is index-aligned with tasks.
type TaskRunner interface {
	RunAll(ctx context.Context, tasks []func(ctx context.Context) error) []error
}
