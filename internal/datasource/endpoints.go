package datasource

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LoadEndpointsFromFile 从指定路径的文件中读取端点列表。
// 它会忽略空行和以 '#' 开头的注释行。重复端点只保留第一次出现,
// 且保持文件里的先后顺序,报告的分组顺序依赖这一点。
func LoadEndpointsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法打开端点文件 '%s': %w", filePath, err)
	}
	defer file.Close()

	seen := make(map[string]struct{})
	var endpoints []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimRight(line, "/")
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		endpoints = append(endpoints, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取端点文件时出错: %w", err)
	}

	if len(endpoints) == 0 {
		return nil, fmt.Errorf("端点文件 '%s' 为空或未包含有效端点", filePath)
	}

	return endpoints, nil
}
