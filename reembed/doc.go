// Package reembed rewrites every vector-index entry with a new or updated
// embedding model.
//
// Entries are read in batches, embedded through a retry.Executor, normalized
// to unit length and written back. Batches run concurrently up to
// Config.Concurrency and progress is reported to an io.Writer.
package reembed
