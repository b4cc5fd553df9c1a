// Package services implements the two synchronization engines.
//
// SubscriptionSyncer merges a device's pending subscription changes with the
// server's changes since the stored checkpoint. EpisodeSyncer does the same
// for the account's append-only episode action log. Both engines
//
//   - hold a KeyLocker lock for (account, device, resource) for the whole cycle,
//   - leave the checkpoint untouched on any failure,
//   - persist the new checkpoint last, with compare-and-set,
//   - return failures wrapped in *common.SyncError.
//
// Retrying is up to the caller; common.IsRetryable tells which errors qualify.
package services
