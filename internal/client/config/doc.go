// Package config loads runtime configuration of the gpo CLI.
//
// Sources, later ones win:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file given with -c or -config.
//  3. Command-line flags.
//
// The JSON file uses timex.Duration for http_timeout, so "30s" and integer
// nanoseconds are both accepted:
//
//	{
//	  "server_url": "https://gpodder.net/",
//	  "username": "alice",
//	  "device": "laptop",
//	  "database_dsn": "/home/alice/.local/share/gpo/state.db",
//	  "checkpoint_backend": "s3",
//	  "s3": {"bucket": "gpo", "region": "eu-central-1"},
//	  "http_timeout": "30s",
//	  "conflict_policy": "local-wins"
//	}
//
// Credentials are never read from the environment.
package config
