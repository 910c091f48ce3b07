package report

import (
	"math"
	"sort"

	"CDN_Endpoint_Tester_Go/pkg/model"
)

// ThroughputWeight 综合得分里吞吐量的权重:每 1 Mbps 抵 10ms 延迟余量
const ThroughputWeight = 10.0

// Summarize 把测试记录按端点聚合成排名列表。
// 分组顺序保持记录里首次出现的顺序;统计只取成功记录;
// 得分 = 平均延迟 - 10×平均吞吐,越小越好;全失败端点得分为 +Inf。
// 稳定排序保证同分端点(包括全失败的)维持原有先后。
func Summarize(records []model.ResultRecord) []model.EndpointSummary {
	groups := make(map[string][]model.ResultRecord)
	var order []string
	for _, rec := range records {
		if _, ok := groups[rec.Endpoint]; !ok {
			order = append(order, rec.Endpoint)
		}
		groups[rec.Endpoint] = append(groups[rec.Endpoint], rec)
	}

	summaries := make([]model.EndpointSummary, 0, len(order))
	for _, endpoint := range order {
		group := groups[endpoint]
		s := model.EndpointSummary{
			Endpoint:   endpoint,
			IPAddress:  group[0].IPAddress,
			TotalCount: len(group),
			Score:      math.Inf(1),
			Classification: model.Classification{
				ASN:             group[0].ASN,
				Geolocation:     group[0].Geolocation,
				HostingProvider: group[0].HostingProvider,
			},
		}

		var latSum, jitSum, thrSum float64
		for _, rec := range group {
			if rec.SuccessRate > 0 {
				s.SuccessCount++
				latSum += rec.AvgLatencyMs
				jitSum += rec.JitterMs
				thrSum += rec.ThroughputMbps
			}
		}
		if s.SuccessCount > 0 {
			n := float64(s.SuccessCount)
			s.AvgLatencyMs = latSum / n
			s.AvgJitterMs = jitSum / n
			s.AvgThroughputMbps = thrSum / n
			s.Score = s.AvgLatencyMs - ThroughputWeight*s.AvgThroughputMbps
		}
		summaries = append(summaries, s)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Score < summaries[j].Score
	})
	return summaries
}
