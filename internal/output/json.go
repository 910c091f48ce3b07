package output

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"CDN_Endpoint_Tester_Go/internal/engine"
	"CDN_Endpoint_Tester_Go/pkg/model"
)

// Document 输出 JSON 的顶层结构:运行信息 + 原始记录 + 排名
type Document struct {
	RunID     string                  `json:"run_id"`
	StartedAt string                  `json:"started_at"`
	UserAgent string                  `json:"user_agent"`
	Records   []model.ResultRecord    `json:"records"`
	Ranking   []model.EndpointSummary `json:"ranking"`
}

// WriteJSONFile 将一次运行的完整结果写入指定的 JSON 文件中
func WriteJSONFile(filePath string, run *engine.RunResult, summaries []model.EndpointSummary) error {
	doc := Document{
		RunID:     run.RunID,
		StartedAt: run.StartedAt.Format(time.RFC3339),
		UserAgent: run.UserAgent,
		Records:   run.Records,
		Ranking:   summaries,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("无法将结果序列化为 JSON: %w", err)
	}

	err = os.WriteFile(filePath, data, 0644)
	if err != nil {
		return fmt.Errorf("无法写入 JSON 文件 '%s': %w", filePath, err)
	}

	return nil
}
