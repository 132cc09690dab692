// Package checkpoint persists the result of a crawl so a later run can skip
// discovery.
//
// The file is a human-readable JSON array in crawl order, indented with four
// spaces:
//
//	[
//	    {
//	        "media_key": "abc123",
//	        "create_time": "2024-03-01T10:00:00Z"
//	    }
//	]
//
// There is no schema version; Load expects exactly this shape.
package checkpoint
