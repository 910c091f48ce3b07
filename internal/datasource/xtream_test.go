package datasource

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeXtream 模拟端点的 player_api.php 目录接口
type fakeXtream struct {
	mu      sync.Mutex
	status  string
	queries []url.Values
}

func (f *fakeXtream) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/player_api.php" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		f.mu.Lock()
		f.queries = append(f.queries, q)
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch q.Get("action") {
		case "":
			fmt.Fprintf(w, `{"user_info":{"status":"%s"}}`, f.status)
		case "get_live_categories":
			fmt.Fprint(w, `[{"category_id":1,"category_name":"News"},{"category_id":"7","category_name":"Sports"}]`)
		case "get_live_streams":
			fmt.Fprint(w, `[{"stream_id":101,"name":"CCTV-1"},{"stream_id":"202","name":"CCTV-5"},{"stream_id":303},{"name":"no id"}]`)
		default:
			http.NotFound(w, r)
		}
	}
}

func (f *fakeXtream) lastQuery() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func TestVerifyCredentials(t *testing.T) {
	fake := &fakeXtream{status: "Active"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	c := NewXtreamClient(srv.URL, "user", "pass")
	ok, status, err := c.VerifyCredentials(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Active", status)

	q := fake.lastQuery()
	require.Equal(t, "user", q.Get("username"))
	require.Equal(t, "pass", q.Get("password"))

	fake.status = "Banned"
	ok, status, err = c.VerifyCredentials(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, "Banned", status)
}

func TestGetLiveCategories(t *testing.T) {
	fake := &fakeXtream{status: "Active"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	categories, err := NewXtreamClient(srv.URL, "u", "p").GetLiveCategories(context.Background())
	require.NoError(t, err)
	require.Len(t, categories, 2)
	// 分类 ID 数字和字符串混着来,统一成字符串
	require.Equal(t, Category{ID: "1", Name: "News"}, categories[0])
	require.Equal(t, Category{ID: "7", Name: "Sports"}, categories[1])
}

func TestGetLiveStreams(t *testing.T) {
	fake := &fakeXtream{status: "Active"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	channels, err := NewXtreamClient(srv.URL, "u", "p").GetLiveStreams(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, channels, 3)
	require.Equal(t, "101", channels[0].ID)
	require.Equal(t, "CCTV-1", channels[0].Name)
	require.Equal(t, "202", channels[1].ID)
	require.Equal(t, "303", channels[2].ID)
	require.Equal(t, "Unknown", channels[2].Name)

	q := fake.lastQuery()
	require.Equal(t, "get_live_streams", q.Get("action"))
	require.False(t, q.Has("category_id"))
}

func TestGetLiveStreamsPassesCategory(t *testing.T) {
	fake := &fakeXtream{status: "Active"}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	_, err := NewXtreamClient(srv.URL, "u", "p").GetLiveStreams(context.Background(), "7")
	require.NoError(t, err)
	require.Equal(t, "7", fake.lastQuery().Get("category_id"))
}

func TestXtreamRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := NewXtreamClient(srv.URL, "u", "p").GetLiveCategories(context.Background())
	require.Error(t, err)
}

func TestStreamURL(t *testing.T) {
	require.Equal(t,
		"http://cdn-a.example.com:8080/live/user/pass/1001.ts",
		StreamURL("http://cdn-a.example.com:8080", "user", "pass", "1001"))
	require.Equal(t,
		"http://cdn-a.example.com:8080/live/user/pass/1001.ts",
		StreamURL("http://cdn-a.example.com:8080/", "user", "pass", "1001"))
}
