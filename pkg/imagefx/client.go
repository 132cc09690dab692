package imagefx

import (
	"context"
	"encoding/json"

	errs "fxarchive/pkg/errors"
	"fxarchive/pkg/logger"
	"fxarchive/pkg/transport"
)

// Sender is the subset of transport.Client used here.
type Sender interface {
	Get(ctx context.Context, url string) (*transport.Response, error)
}

// Client calls the two ImageFX procedures.
type Client struct {
	sender  Sender
	baseURL string
	logger  logger.Logger
}

// NewClient creates a client. An empty baseURL selects BaseURL.
func NewClient(sender Sender, baseURL string, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &Client{sender: sender, baseURL: baseURL, logger: log}
}

// FetchHistoryPage fetches one page of the user's history.
func (c *Client) FetchHistoryPage(ctx context.Context, cursor string, limit int) (*HistoryPage, error) {
	u, err := HistoryURL(c.baseURL, cursor, limit)
	if err != nil {
		return nil, err
	}

	c.logger.DebugWithFields("fetching history page", map[string]interface{}{
		"cursor": cursor,
		"limit":  limit,
	})

	var resp trpcResponse[HistoryPage]
	if err := c.getJSON(ctx, u, HistoryProcedure, &resp); err != nil {
		return nil, err
	}

	page := resp.payload()
	if page == nil {
		return nil, errs.Malformed("%s: missing result.data.json.result", HistoryProcedure)
	}
	return page, nil
}

// FetchMedia fetches one item. A response without the image object returns
// an Image whose Payload reports absent; the caller decides what that means.
func (c *Client) FetchMedia(ctx context.Context, mediaKey string) (*Image, error) {
	u, err := MediaURL(c.baseURL, mediaKey)
	if err != nil {
		return nil, err
	}

	var resp trpcResponse[mediaResult]
	if err := c.getJSON(ctx, u, MediaProcedure, &resp); err != nil {
		return nil, err
	}

	result := resp.payload()
	if result == nil {
		return nil, errs.Malformed("%s: missing result.data.json.result", MediaProcedure)
	}
	if result.Image == nil {
		return &Image{}, nil
	}
	return result.Image, nil
}

func (c *Client) getJSON(ctx context.Context, url, procedure string, target interface{}) error {
	resp, err := c.sender.Get(ctx, url)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Body, target); err != nil {
		bodyPreview := string(resp.Body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"procedure":    procedure,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return &errs.Error{
			Type:    errs.ErrorTypeParsing,
			Message: procedure + ": invalid JSON: " + err.Error(),
			Code:    resp.StatusCode,
			Err:     errs.ErrMalformedResponse,
		}
	}
	return nil
}
