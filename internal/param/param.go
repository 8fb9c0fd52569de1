// Package param resolves secrets and preset lists kept outside the process
// environment, such as the image service key and the preset prompts.
package param

import "context"

type Fetcher interface {
	// Fetch returns one decrypted parameter value.
	Fetch(ctx context.Context, path string) (string, error)
	// FetchAll returns the values of every parameter directly under path.
	FetchAll(ctx context.Context, path string) ([]string, error)
}
