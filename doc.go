// Package gposync is a client for the gpodder.net API v2 that keeps a local
// copy of an account's podcast subscriptions and episode actions in sync with
// the server.
//
// Every (account, device, resource) stream carries a checkpoint, the server
// cursor after the last successful cycle. A cycle uploads local changes,
// downloads everything newer than the checkpoint, merges it into local state
// and only then advances the checkpoint, so an interrupted cycle is simply
// repeated on the next call.
//
//	c, err := gposync.New(ctx, gposync.Options{
//	    Username: "alice",
//	    Password: "secret",
//	    Device:   "phone",
//	    Store:    gposync.StoreOptions{DSN: "gpo.db"},
//	})
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	_ = c.Subscribe(ctx, "http://example.com/feed.xml")
//	report, err := c.Sync(ctx)
package gposync
