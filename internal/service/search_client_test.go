package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreshnessFromRange(t *testing.T) {
	cases := map[string]string{
		"1d":      "oneDay",
		"1w":      "oneWeek",
		"2w":      "oneWeek",
		"1m":      "oneMonth",
		"2m":      "oneYear",
		"3m":      "oneYear",
		"":        "noLimit",
		"whatever": "noLimit",
	}
	for in, want := range cases {
		assert.Equal(t, want, freshnessFromRange(in), "range %q", in)
	}
}

func TestSearchRequestAndResponse(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/web-search", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"webPages":{"value":[
			{"name":"产品涨价公告","url":"https://b.example/1","snippet":"出厂价上调","summary":"详细摘要","datePublished":"2025-08-20"}
		]}}}`))
	}))
	defer srv.Close()

	c := NewSearchClient(srv.URL, "test-key", zerolog.Nop())
	items, err := c.Search(context.Background(), "测试股份 600001 涨价", SearchOptions{Count: 8, TimeRange: "1m", NeedSummary: true})
	require.NoError(t, err)

	assert.Equal(t, "测试股份 600001 涨价", got.Query)
	assert.Equal(t, 8, got.Count)
	assert.Equal(t, "oneMonth", got.Freshness)
	assert.True(t, got.Summary)

	require.Len(t, items, 1)
	assert.Equal(t, "产品涨价公告", items[0].Title)
	assert.Equal(t, "https://b.example/1", items[0].URL)
	assert.Equal(t, "出厂价上调", items[0].Snippet)
	assert.Equal(t, "详细摘要", items[0].Summary)
	assert.Equal(t, "2025-08-20", items[0].PublishTime)
}

func TestSearchNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewSearchClient(srv.URL, "test-key", zerolog.Nop())
	_, err := c.Search(context.Background(), "q", SearchOptions{})
	assert.Error(t, err)
}
