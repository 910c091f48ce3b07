package tester

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLatencyCollectsSamples(t *testing.T) {
	var heads atomic.Int64
	var gotUA atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			heads.Add(1)
		}
		gotUA.Store(r.Header.Get("User-Agent"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	result, err := TestLatency(context.Background(), client, srv.URL+"/live/u/p/1001.ts",
		"TiviMate/4.4.0 (Android 11)", 3, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 3, result.Samples)
	require.EqualValues(t, 3, heads.Load())
	require.Equal(t, "TiviMate/4.4.0 (Android 11)", gotUA.Load())
	require.Greater(t, result.AvgMs, 0.0)
	require.GreaterOrEqual(t, result.JitterMs, 0.0)
}

func TestLatencySingleSampleHasZeroJitter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	result, err := TestLatency(context.Background(), client, srv.URL, "ua", 1, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 1, result.Samples)
	require.Zero(t, result.JitterMs)
}

func TestLatencyCountsAuthRejectionsAsReachable(t *testing.T) {
	// 流地址拒绝鉴权也说明链路通,401/403 要算有效样本
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	result, err := TestLatency(context.Background(), client, srv.URL, "ua", 2, time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 2, result.Samples)
}

func TestLatencyFailsWhenAllProbesRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := &http.Client{Timeout: 5 * time.Second}
	result, err := TestLatency(context.Background(), client, srv.URL, "ua", 2, time.Millisecond)
	require.Error(t, err)
	require.Nil(t, result)
}

func TestLatencyStopsOnCancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// 间隔给到 1 小时,只有取消检查生效才能立即返回
	client := &http.Client{Timeout: 5 * time.Second}
	start := time.Now()
	_, err := TestLatency(ctx, client, srv.URL, "ua", 2, time.Hour)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), time.Second)
}
