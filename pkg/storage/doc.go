// Package storage lays out downloaded items on disk:
//
//	<root>/<YYYY-MM-DD>/<id>.jpg
//	<root>/<YYYY-MM-DD>/<id>.txt
//
// The date is the item's creation date in its recorded offset; undated items are written
// directly under <root>. All writes go through WriteFileAtomic.
package storage
