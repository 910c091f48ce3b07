package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"CDN_Endpoint_Tester_Go/pkg/model"
)

// WriteCSVFile 将测试记录写入指定的 CSV 文件中,
// 列顺序与 ResultRecord 的字段声明顺序一致
func WriteCSVFile(filePath string, records []model.ResultRecord) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("无法创建 CSV 文件 '%s': %w", filePath, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// 写入表头
	header := []string{
		"endpoint",
		"channel_id",
		"channel_name",
		"timestamp",
		"avg_latency_ms",
		"jitter_ms",
		"throughput_mbps",
		"peak_throughput_mbps",
		"ip_address",
		"asn",
		"geolocation",
		"hosting_provider",
		"success_rate",
		"error_message",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("写入 CSV 表头失败: %w", err)
	}

	// 写入数据行
	for _, r := range records {
		row := []string{
			r.Endpoint,
			r.ChannelID,
			r.ChannelName,
			r.Timestamp,
			formatFloat(r.AvgLatencyMs),
			formatFloat(r.JitterMs),
			formatFloat(r.ThroughputMbps),
			formatFloat(r.PeakThroughputMbps),
			r.IPAddress,
			r.ASN,
			r.Geolocation,
			r.HostingProvider,
			formatFloat(r.SuccessRate),
			r.ErrorMessage,
		}
		if err := writer.Write(row); err != nil {
			// 记录错误但继续尝试写入其他行
			fmt.Fprintf(os.Stderr, "警告: 写入 CSV 行失败: %v\n", err)
		}
	}

	return writer.Error()
}

// formatFloat 数值统一保留两位小数,和报告里的展示一致
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
