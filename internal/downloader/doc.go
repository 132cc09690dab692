// Package downloader runs the per-item fetch over a whole batch with a fixed
// concurrency ceiling and aggregates the outcomes into a DispatchResult.
package downloader
