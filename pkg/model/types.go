package model

import (
	"encoding/json"
	"math"
)

// Channel 一个待测的直播频道(实际测的是它的 .ts 流地址)
type Channel struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// Classification 端点 IP 的归属信息,查询失败时字段为空
type Classification struct {
	ASN             string `json:"asn"`
	Geolocation     string `json:"geolocation"`
	HostingProvider string `json:"hosting_provider"`
}

// ResultRecord 一次 (端点, 频道) 组合的测试结果,写入后不再修改。
// CSV 列顺序与这里的字段声明顺序一致。
type ResultRecord struct {
	Endpoint           string  `json:"endpoint"`
	ChannelID          string  `json:"channel_id"`
	ChannelName        string  `json:"channel_name"`
	Timestamp          string  `json:"timestamp"`
	AvgLatencyMs       float64 `json:"avg_latency_ms"`
	JitterMs           float64 `json:"jitter_ms"`
	ThroughputMbps     float64 `json:"throughput_mbps"`
	PeakThroughputMbps float64 `json:"peak_throughput_mbps"`
	IPAddress          string  `json:"ip_address"` // 解析失败时为 "N/A"
	ASN                string  `json:"asn"`
	Geolocation        string  `json:"geolocation"`
	HostingProvider    string  `json:"hosting_provider"`
	SuccessRate        float64 `json:"success_rate"` // 0 或 100
	ErrorMessage       string  `json:"error_message"`
}

// EndpointSummary 按端点聚合出的排名条目,每次生成报告时重新计算
type EndpointSummary struct {
	Endpoint  string `json:"endpoint"`
	IPAddress string `json:"ip_address"`
	Classification
	AvgLatencyMs      float64 `json:"avg_latency_ms"`
	AvgJitterMs       float64 `json:"avg_jitter_ms"`
	AvgThroughputMbps float64 `json:"avg_throughput_mbps"`
	SuccessCount      int     `json:"success_count"`
	TotalCount        int     `json:"total_count"`
	Score             float64 `json:"score"` // 越小越好,全失败为 +Inf
}

// MarshalJSON 全失败端点的得分是 +Inf,JSON 不支持,序列化为 null
func (s EndpointSummary) MarshalJSON() ([]byte, error) {
	type Alias EndpointSummary
	if math.IsInf(s.Score, 1) {
		return json.Marshal(&struct {
			Alias
			Score any `json:"score"`
		}{Alias: Alias(s), Score: nil})
	}
	return json.Marshal(Alias(s))
}
