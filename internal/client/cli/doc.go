// Package cli implements the gpo command-line client.
//
// A command given on the command line runs once:
//
//	gpo -s https://gpodder.net -u alice -d phone subscribe http://example.com/feed.xml
//	gpo -u alice -d phone sync
//
// Without a command an interactive shell is started. Subscribe, unsubscribe,
// play and action only queue changes locally; sync uploads them and pulls
// what other devices changed since the last checkpoint.
package cli
