package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, base, procedure, input string, cookie string) (int, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, base+"/"+procedure+"?input="+url.QueryEscape(input), nil)
	require.NoError(t, err)
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var decoded map[string]interface{}
	_ = json.Unmarshal(body, &decoded)
	return resp.StatusCode, decoded
}

func inner(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	r := body["result"].(map[string]interface{})
	d := r["data"].(map[string]interface{})
	j := d["json"].(map[string]interface{})
	return j["result"].(map[string]interface{})
}

func TestImageFXServerPaging(t *testing.T) {
	srv := NewImageFXServer(GenerateItems(5))
	defer srv.Close()

	status, body := get(t, srv.URL(), "media.fetchUserHistory", `{"json":{"cursor":"","limit":3,"type":"IMAGE_FX"}}`, "")
	require.Equal(t, http.StatusOK, status)
	page := inner(t, body)
	assert.Len(t, page["userWorkflows"], 3)
	next, ok := page["nextPageToken"].(string)
	require.True(t, ok)

	status, body = get(t, srv.URL(), "media.fetchUserHistory", `{"json":{"cursor":"`+next+`","limit":3,"type":"IMAGE_FX"}}`, "")
	require.Equal(t, http.StatusOK, status)
	page = inner(t, body)
	assert.Len(t, page["userWorkflows"], 2)
	assert.Nil(t, page["nextPageToken"])
	assert.Equal(t, 2, srv.HistoryCalls())
}

func TestImageFXServerMedia(t *testing.T) {
	items := GenerateItems(2)
	items[1].NoImage = true
	srv := NewImageFXServer(items)
	defer srv.Close()

	status, body := get(t, srv.URL(), "media.fetchMedia", `{"json":{"mediaKey":"media-0","height":null,"width":null}}`, "")
	require.Equal(t, http.StatusOK, status)
	image := inner(t, body)["image"].(map[string]interface{})
	assert.Equal(t, "prompt 0", image["prompt"])
	assert.NotEmpty(t, image["encodedImage"])

	status, body = get(t, srv.URL(), "media.fetchMedia", `{"json":{"mediaKey":"media-1"}}`, "")
	require.Equal(t, http.StatusOK, status)
	assert.NotContains(t, inner(t, body), "image")

	status, _ = get(t, srv.URL(), "media.fetchMedia", `{"json":{"mediaKey":"nope"}}`, "")
	assert.Equal(t, http.StatusNotFound, status)
}

func TestImageFXServerInjection(t *testing.T) {
	srv := NewImageFXServer(GenerateItems(1))
	defer srv.Close()

	srv.FailNext("media", http.StatusServiceUnavailable)
	srv.FailKey("media-0", http.StatusForbidden)

	status, _ := get(t, srv.URL(), "media.fetchMedia", `{"json":{"mediaKey":"media-0"}}`, "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	status, _ = get(t, srv.URL(), "media.fetchMedia", `{"json":{"mediaKey":"media-0"}}`, "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, 2, srv.MediaCalls())
}

func TestImageFXServerCookie(t *testing.T) {
	srv := NewImageFXServer(GenerateItems(1))
	defer srv.Close()
	srv.RequireCookie("SID=abc")

	status, _ := get(t, srv.URL(), "media.fetchUserHistory", `{"json":{"cursor":"","limit":1,"type":"IMAGE_FX"}}`, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = get(t, srv.URL(), "media.fetchUserHistory", `{"json":{"cursor":"","limit":1,"type":"IMAGE_FX"}}`, "SID=abc")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"", "SID=abc"}, srv.SeenCookies())
}

func TestImageFXServerEmptyPageAdvancesCursor(t *testing.T) {
	srv := NewImageFXServer(GenerateItems(2))
	defer srv.Close()
	srv.EmptyPage(0)

	_, body := get(t, srv.URL(), "media.fetchUserHistory", `{"json":{"cursor":"","limit":5,"type":"IMAGE_FX"}}`, "")
	page := inner(t, body)
	assert.Empty(t, page["userWorkflows"])
	next := page["nextPageToken"].(string)

	_, body = get(t, srv.URL(), "media.fetchUserHistory", `{"json":{"cursor":"`+next+`","limit":5,"type":"IMAGE_FX"}}`, "")
	assert.Len(t, inner(t, body)["userWorkflows"], 2)
}
