package output

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"CDN_Endpoint_Tester_Go/internal/engine"
	"CDN_Endpoint_Tester_Go/pkg/model"
)

func TestWriteJSONFile(t *testing.T) {
	run := &engine.RunResult{
		RunID:     "run-123",
		StartedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		UserAgent: "TiviMate/4.4.0 (Android 11)",
		Records: []model.ResultRecord{
			{Endpoint: "http://cdn-a.example.com:8080", ChannelID: "1001", SuccessRate: 100, AvgLatencyMs: 42},
		},
	}
	summaries := []model.EndpointSummary{
		{Endpoint: "http://cdn-a.example.com:8080", AvgLatencyMs: 42, SuccessCount: 1, TotalCount: 1, Score: 42},
		{Endpoint: "http://cdn-b.example.com:8080", TotalCount: 1, Score: math.Inf(1)},
	}

	path := filepath.Join(t.TempDir(), "result.json")
	require.NoError(t, WriteJSONFile(path, run, summaries))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, "run-123", doc["run_id"])
	require.Equal(t, "2025-06-01T12:00:00Z", doc["started_at"])

	records := doc["records"].([]any)
	require.Len(t, records, 1)
	require.Equal(t, "1001", records[0].(map[string]any)["channel_id"])

	ranking := doc["ranking"].([]any)
	require.Len(t, ranking, 2)
	first := ranking[0].(map[string]any)
	require.InDelta(t, 42, first["score"].(float64), 1e-9)
	// 全失败端点的 +Inf 得分必须序列化成 null,整份 JSON 才合法
	second := ranking[1].(map[string]any)
	score, present := second["score"]
	require.True(t, present)
	require.Nil(t, score)
}
