package output

import (
	"fmt"
	"os"
	"strings"

	"github.com/wcharczuk/go-chart/v2"

	"CDN_Endpoint_Tester_Go/pkg/model"
)

// WriteLatencyChart 画各端点平均延迟的柱状图,全失败的端点不画
func WriteLatencyChart(filePath string, summaries []model.EndpointSummary) error {
	return writeBarChart(filePath, "Average Latency (ms)", summaries,
		func(s model.EndpointSummary) float64 { return s.AvgLatencyMs })
}

// WriteThroughputChart 画各端点平均吞吐量的柱状图
func WriteThroughputChart(filePath string, summaries []model.EndpointSummary) error {
	return writeBarChart(filePath, "Average Throughput (Mbps)", summaries,
		func(s model.EndpointSummary) float64 { return s.AvgThroughputMbps })
}

func writeBarChart(filePath, title string, summaries []model.EndpointSummary, value func(model.EndpointSummary) float64) error {
	var bars []chart.Value
	var maxVal float64
	for _, s := range summaries {
		if s.SuccessCount == 0 {
			continue
		}
		v := value(s)
		if v > maxVal {
			maxVal = v
		}
		bars = append(bars, chart.Value{Label: shortLabel(s.Endpoint), Value: v})
	}
	if len(bars) == 0 {
		return fmt.Errorf("没有成功的端点,无法生成图表 '%s'", filePath)
	}
	if maxVal <= 0 {
		maxVal = 1 // 全零数据也要有合法的坐标范围
	}

	width := 120 + 100*len(bars)
	if width < 512 {
		width = 512
	}
	graph := chart.BarChart{
		Title:    title,
		Width:    width,
		Height:   512,
		BarWidth: 60,
		Bars:     bars,
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: maxVal * 1.2},
		},
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("无法创建图表文件 '%s': %w", filePath, err)
	}
	defer file.Close()

	if err := graph.Render(chart.PNG, file); err != nil {
		return fmt.Errorf("渲染图表失败: %w", err)
	}
	return nil
}

// shortLabel 压短端点地址,柱状图下面放不下完整 URL
func shortLabel(endpoint string) string {
	s := strings.TrimPrefix(endpoint, "https://")
	s = strings.TrimPrefix(s, "http://")
	if len(s) > 24 {
		s = s[:24]
	}
	return s
}
