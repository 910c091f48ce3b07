package datasource

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"CDN_Endpoint_Tester_Go/pkg/model"
)

// LoadChannelsFromFile 从文件读取频道列表,每行 "ID,名称",名称可省略。
// 同样忽略空行和 '#' 注释行。
func LoadChannelsFromFile(filePath string) ([]model.Channel, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法打开频道文件 '%s': %w", filePath, err)
	}
	defer file.Close()

	var channels []model.Channel
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, ",", 2)
		ch := model.Channel{ID: strings.TrimSpace(parts[0])}
		if len(parts) == 2 {
			ch.Name = strings.TrimSpace(parts[1])
		}
		if ch.ID == "" {
			continue
		}
		if ch.Name == "" {
			ch.Name = ch.ID
		}
		channels = append(channels, ch)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取频道文件时出错: %w", err)
	}

	if len(channels) == 0 {
		return nil, fmt.Errorf("频道文件 '%s' 为空或未包含有效频道", filePath)
	}

	return channels, nil
}
