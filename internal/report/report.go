package report

import (
	"fmt"
	"strings"

	"CDN_Endpoint_Tester_Go/internal/engine"
	"CDN_Endpoint_Tester_Go/pkg/model"
)

const lineWidth = 80

// Render 生成给人看的文本报告,按排名逐端点罗列归属信息和平均性能
func Render(run *engine.RunResult, summaries []model.EndpointSummary) string {
	var b strings.Builder
	thick := strings.Repeat("=", lineWidth)
	thin := strings.Repeat("-", lineWidth)

	b.WriteString("\n" + thick + "\n")
	b.WriteString("CDN 端点性能测试报告\n")
	b.WriteString(thick + "\n")
	if run != nil {
		b.WriteString(fmt.Sprintf("运行 ID: %s\n", run.RunID))
		b.WriteString(fmt.Sprintf("开始时间: %s\n", run.StartedAt.Format("2006-01-02 15:04:05")))
		b.WriteString(fmt.Sprintf("User-Agent: %s\n", run.UserAgent))
	}
	b.WriteString("\n")

	for i, s := range summaries {
		b.WriteString(fmt.Sprintf("#%d - %s\n", i+1, s.Endpoint))
		b.WriteString(thin + "\n")

		if s.IPAddress != "" && s.IPAddress != "N/A" {
			b.WriteString(fmt.Sprintf("IP 地址: %s\n", s.IPAddress))
			b.WriteString(fmt.Sprintf("托管商: %s\n", orUnknown(s.HostingProvider)))
			b.WriteString(fmt.Sprintf("ASN: %s\n", orUnknown(s.ASN)))
			b.WriteString(fmt.Sprintf("位置: %s\n", orUnknown(s.Geolocation)))
		}

		if s.SuccessCount > 0 {
			b.WriteString("\n平均性能:\n")
			b.WriteString(fmt.Sprintf("  延迟: %.2fms\n", s.AvgLatencyMs))
			b.WriteString(fmt.Sprintf("  抖动: %.2fms\n", s.AvgJitterMs))
			b.WriteString(fmt.Sprintf("  吞吐量: %.2f Mbps\n", s.AvgThroughputMbps))
			b.WriteString(fmt.Sprintf("  综合得分: %.2f\n", s.Score))
			b.WriteString(fmt.Sprintf("  成功: %d/%d 个频道\n", s.SuccessCount, s.TotalCount))
		} else {
			b.WriteString("\n该端点全部测试失败\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(thick + "\n")
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
