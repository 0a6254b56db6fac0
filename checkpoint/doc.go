// Package checkpoint persists and restores the ordered samples of a
// learner.
//
// A learner's state is fully determined by the points told to it, in
// order, so a checkpoint is just that list. Replaying it on a fresh
// learner of the same configuration reproduces the original.
//
// Stores:
//   - BadgerStore: an append-only journal in BadgerDB, one JSON record per
//     sample; repeated saves only write the new tail
//   - FileStore: a single YAML document, rewritten atomically on each save
//
// Both satisfy runner.Saver, so they plug straight into
// runner.WithCheckpoint.
package checkpoint
