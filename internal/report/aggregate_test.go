package report

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"CDN_Endpoint_Tester_Go/pkg/model"
)

func success(endpoint, channel string, lat, jit, thr float64) model.ResultRecord {
	return model.ResultRecord{
		Endpoint:        endpoint,
		ChannelID:       channel,
		AvgLatencyMs:    lat,
		JitterMs:        jit,
		ThroughputMbps:  thr,
		IPAddress:       "203.0.113.1",
		ASN:             "AS13335 - Cloudflare, Inc.",
		Geolocation:     "Frankfurt, Germany",
		HostingProvider: "Cloudflare",
		SuccessRate:     100,
	}
}

func failure(endpoint, channel, reason string) model.ResultRecord {
	return model.ResultRecord{
		Endpoint:     endpoint,
		ChannelID:    channel,
		IPAddress:    "N/A",
		SuccessRate:  0,
		ErrorMessage: reason,
	}
}

func TestSummarizeRanksByScore(t *testing.T) {
	records := []model.ResultRecord{
		// b: 平均延迟 100, 平均吞吐 2 → 得分 80
		success("http://b", "1", 100, 5, 2),
		// a: 平均延迟 50, 平均吞吐 5 → 得分 0
		success("http://a", "1", 40, 2, 5),
		success("http://a", "2", 60, 4, 5),
		// c: 全失败 → 得分 +Inf,垫底
		failure("http://c", "1", "DNS resolution failed"),
		failure("http://c", "2", "DNS resolution failed"),
	}

	summaries := Summarize(records)
	require.Len(t, summaries, 3)

	require.Equal(t, "http://a", summaries[0].Endpoint)
	require.InDelta(t, 50, summaries[0].AvgLatencyMs, 1e-9)
	require.InDelta(t, 3, summaries[0].AvgJitterMs, 1e-9)
	require.InDelta(t, 5, summaries[0].AvgThroughputMbps, 1e-9)
	require.InDelta(t, 0, summaries[0].Score, 1e-9)
	require.Equal(t, 2, summaries[0].SuccessCount)
	require.Equal(t, 2, summaries[0].TotalCount)
	require.Equal(t, "Cloudflare", summaries[0].HostingProvider)

	require.Equal(t, "http://b", summaries[1].Endpoint)
	require.InDelta(t, 80, summaries[1].Score, 1e-9)

	require.Equal(t, "http://c", summaries[2].Endpoint)
	require.True(t, math.IsInf(summaries[2].Score, 1))
	require.Zero(t, summaries[2].SuccessCount)
	require.Equal(t, 2, summaries[2].TotalCount)
	require.Equal(t, "N/A", summaries[2].IPAddress)
}

func TestSummarizeAveragesOnlySuccessfulRecords(t *testing.T) {
	records := []model.ResultRecord{
		success("http://a", "1", 30, 1, 2),
		failure("http://a", "2", "Connection failed"),
	}

	summaries := Summarize(records)
	require.Len(t, summaries, 1)
	s := summaries[0]
	require.Equal(t, 1, s.SuccessCount)
	require.Equal(t, 2, s.TotalCount)
	// 失败记录的 0 值不能稀释平均数
	require.InDelta(t, 30, s.AvgLatencyMs, 1e-9)
	require.InDelta(t, 2, s.AvgThroughputMbps, 1e-9)
	require.InDelta(t, 10, s.Score, 1e-9)
}

func TestSummarizeStableOrderOnTies(t *testing.T) {
	records := []model.ResultRecord{
		success("http://first", "1", 50, 1, 3),
		success("http://second", "1", 50, 1, 3),
		failure("http://third", "1", "DNS resolution failed"),
		failure("http://fourth", "1", "DNS resolution failed"),
	}

	summaries := Summarize(records)
	require.Len(t, summaries, 4)
	// 同分端点按记录里首次出现的顺序排
	require.Equal(t, "http://first", summaries[0].Endpoint)
	require.Equal(t, "http://second", summaries[1].Endpoint)
	require.Equal(t, "http://third", summaries[2].Endpoint)
	require.Equal(t, "http://fourth", summaries[3].Endpoint)
}

func TestSummarizeEmpty(t *testing.T) {
	require.Empty(t, Summarize(nil))
}
