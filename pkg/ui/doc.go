// Package ui holds the terminal-facing pieces of fxarchive: colored print
// helpers, the download progress bar, the confirmation prompt and optional
// desktop notifications. Nothing in the download pipeline depends on it.
package ui
