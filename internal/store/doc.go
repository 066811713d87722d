// Package store provides SQLite-backed durable storage for parity results.
//
// Three tables hold a run's outcome:
//   - runs: one row per validator invocation, with the aggregate verdict
//   - seed_results: one row per seed, including both transcripts as JSON
//   - differences: one row per classified difference
//
// Seed results are written through SaveSeedResult as each seed completes
// (the validator's checkpoint), and FinishRun stamps the verdict at the end.
// A run whose finished_at is NULL was interrupted; the seeds it stored are
// still readable.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Listings are ordered deterministically: runs by started_at then id, seeds
// by seed, differences by command index.
package store
