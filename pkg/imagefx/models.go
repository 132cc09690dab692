package imagefx

// Responses are nested as result.data.json.result. Pointer fields separate a
// missing field from an empty one.

type trpcResponse[T any] struct {
	Result *struct {
		Data *struct {
			JSON *struct {
				Result *T `json:"result"`
			} `json:"json"`
		} `json:"data"`
	} `json:"result"`
}

// payload returns the innermost result or nil if any level is missing.
func (r *trpcResponse[T]) payload() *T {
	if r.Result == nil || r.Result.Data == nil || r.Result.Data.JSON == nil {
		return nil
	}
	return r.Result.Data.JSON.Result
}

// HistoryPage is one page of media.fetchUserHistory.
type HistoryPage struct {
	UserWorkflows *[]Workflow `json:"userWorkflows"`
	NextPageToken *string     `json:"nextPageToken"`
}

// Workflow is a single history entry. Name is the media key.
type Workflow struct {
	Name       string `json:"name"`
	CreateTime string `json:"createTime"`
}

// HasWorkflows reports whether the userWorkflows field was present.
func (p *HistoryPage) HasWorkflows() bool {
	return p.UserWorkflows != nil
}

// Workflows returns the entries, empty when the field was missing.
func (p *HistoryPage) Workflows() []Workflow {
	if p.UserWorkflows == nil {
		return nil
	}
	return *p.UserWorkflows
}

// HasCursorField reports whether nextPageToken was present at all.
func (p *HistoryPage) HasCursorField() bool {
	return p.NextPageToken != nil
}

// NextCursor returns the next page token, or "" on the last page.
func (p *HistoryPage) NextCursor() string {
	if p.NextPageToken == nil {
		return ""
	}
	return *p.NextPageToken
}

type mediaResult struct {
	Image *Image `json:"image"`
}

// Image is the media.fetchMedia payload.
type Image struct {
	EncodedImage *string `json:"encodedImage"`
	Prompt       *string `json:"prompt"`
}

// Payload returns the encoded image, or "" and false when absent.
func (i *Image) Payload() (string, bool) {
	if i == nil || i.EncodedImage == nil || *i.EncodedImage == "" {
		return "", false
	}
	return *i.EncodedImage, true
}

// PromptText returns the prompt, or "" and false when absent or blank.
func (i *Image) PromptText() (string, bool) {
	if i == nil || i.Prompt == nil || *i.Prompt == "" {
		return "", false
	}
	return *i.Prompt, true
}
