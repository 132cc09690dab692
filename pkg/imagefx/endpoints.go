package imagefx

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

const (
	// BaseURL is the tRPC root of the ImageFX web API
	BaseURL = "https://labs.google/fx/api/trpc"

	// HistoryProcedure lists a page of the user's generated media
	HistoryProcedure = "media.fetchUserHistory"

	// MediaProcedure returns one item with its encoded image and prompt
	MediaProcedure = "media.fetchMedia"

	// HistoryType selects image generations in the history listing
	HistoryType = "IMAGE_FX"

	// DefaultPageSize is the page size the web client uses
	DefaultPageSize = 12

	// MaxPageSize bounds the requested page size
	MaxPageSize = 100
)

type historyInput struct {
	Cursor string `json:"cursor"`
	Limit  int    `json:"limit"`
	Type   string `json:"type"`
}

type mediaInput struct {
	MediaKey string `json:"mediaKey"`
	Height   *int   `json:"height"`
	Width    *int   `json:"width"`
}

// trpcInput is the superjson envelope the endpoint expects in ?input=.
type trpcInput struct {
	JSON interface{} `json:"json"`
	Meta trpcMeta    `json:"meta"`
}

type trpcMeta struct {
	Values map[string][]string `json:"values"`
}

// HistoryURL builds the URL for one history page. An empty cursor requests
// the first page.
func HistoryURL(baseURL, cursor string, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	} else if limit > MaxPageSize {
		limit = MaxPageSize
	}

	return procedureURL(baseURL, HistoryProcedure, trpcInput{
		JSON: historyInput{Cursor: cursor, Limit: limit, Type: HistoryType},
		Meta: trpcMeta{Values: map[string][]string{}},
	})
}

// MediaURL builds the URL for fetching a single item by id.
func MediaURL(baseURL, mediaKey string) (string, error) {
	if mediaKey == "" {
		return "", fmt.Errorf("media key is empty")
	}

	// height and width travel as null and are tagged undefined in meta,
	// which makes the server return the original resolution.
	return procedureURL(baseURL, MediaProcedure, trpcInput{
		JSON: mediaInput{MediaKey: mediaKey},
		Meta: trpcMeta{Values: map[string][]string{
			"height": {"undefined"},
			"width":  {"undefined"},
		}},
	})
}

func procedureURL(baseURL, procedure string, input trpcInput) (string, error) {
	if baseURL == "" {
		baseURL = BaseURL
	}
	raw, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s input: %w", procedure, err)
	}

	params := url.Values{}
	params.Set("input", string(raw))
	return fmt.Sprintf("%s/%s?%s", strings.TrimRight(baseURL, "/"), procedure, params.Encode()), nil
}
