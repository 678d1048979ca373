// Package tasks orchestrates long-running library operations with real-time progress reporting.
//
// # Core Operations
//
// The [UploadEngine] drives bulk uploads:
//
//  1. [ScanDirectory] : Walk a directory tree collecting audio files
//     - Filters by extension (server-supported types or a fixed list)
//     - Skips hidden directories
//
//  2. [UploadEngine.BulkUpload] : Upload many files concurrently
//     - Worker pool with a shared rate limiter
//     - Checksum dedup happens inside the client; the engine records
//       history so later runs can report skips without hashing
//     - Partial failures are collected, not fatal
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Upload History
//
// The optional [UploadHistory] interface enables automatic persistence of
// completed uploads. History writes are silent (errors ignored) to avoid
// disrupting uploads.
package tasks
