package tester

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestThroughputMeasuresShortStream(t *testing.T) {
	payload := make([]byte, 256*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	result, err := TestThroughput(context.Background(), client, srv.URL, "ua", 2*time.Second, 0)
	require.NoError(t, err)
	require.Greater(t, result.Mbps, 0.0)
	require.GreaterOrEqual(t, result.PeakMbps, result.Mbps)
}

func TestThroughputStopsAtConfiguredDuration(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		chunk := make([]byte, 8192)
		for {
			select {
			case <-r.Context().Done():
				return
			default:
			}
			if _, err := w.Write(chunk); err != nil {
				return
			}
			flusher.Flush()
			time.Sleep(5 * time.Millisecond)
		}
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 10 * time.Second}
	start := time.Now()
	result, err := TestThroughput(context.Background(), client, srv.URL, "ua", 300*time.Millisecond, 0)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Greater(t, result.Mbps, 0.0)
	// 无穷流必须在配置时长附近停下来
	require.Less(t, elapsed, 2*time.Second)
}

func TestThroughputRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	result, err := TestThroughput(context.Background(), client, srv.URL, "ua", time.Second, 0)
	require.Error(t, err)
	require.ErrorContains(t, err, "403")
	require.Nil(t, result)
}

func TestThroughputTimeoutWithoutDataFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	// 客户端超时先于测速时长触发,且一个字节都没收到
	client := &http.Client{Timeout: 300 * time.Millisecond}
	result, err := TestThroughput(context.Background(), client, srv.URL, "ua", 10*time.Second, 0)
	require.Error(t, err)
	require.Nil(t, result)
}

func TestThroughputWithRateLimit(t *testing.T) {
	payload := make([]byte, 64*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	result, err := TestThroughput(context.Background(), client, srv.URL, "ua", time.Second, 1)
	require.NoError(t, err)
	require.Greater(t, result.Mbps, 0.0)
}
