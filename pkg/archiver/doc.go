// Package archiver runs the fxarchive pipeline end to end.
//
// A run obtains the list of history items, either by crawling the history
// endpoint or from the checkpoint written by an earlier crawl, asks for
// confirmation and downloads every item with bounded concurrency. Each run
// is tagged with a random id that appears on its summary log lines.
package archiver
