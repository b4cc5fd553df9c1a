// Package subscriptions stores the local subscription set of each device.
//
// The set is what the device believes it is subscribed to. The subscription
// sync engine applies merged remote changes to it after every cycle and the
// facade reads it for Subscriptions. URLs are kept sorted on read.
package subscriptions

import "context"

type Repository interface {
	// Get returns the sorted subscription URLs of the device.
	Get(ctx context.Context, account, device string) ([]string, error)
	// Apply adds and removes URLs in one step. Adding a present URL or
	// removing an absent one is not an error.
	Apply(ctx context.Context, account, device string, add, remove []string) error
	// Replace overwrites the device's set.
	Replace(ctx context.Context, account, device string, urls []string) error
}
