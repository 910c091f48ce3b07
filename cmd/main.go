package main

import (
	"CDN_Endpoint_Tester_Go/internal/config"
	"CDN_Endpoint_Tester_Go/internal/engine"
	"CDN_Endpoint_Tester_Go/internal/output"
	"CDN_Endpoint_Tester_Go/internal/report"
	"CDN_Endpoint_Tester_Go/internal/server"
	"context"
	_ "embed"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
)

//go:embed default_config.yaml
var defaultConfigData []byte

// ensureFile 检查文件是否存在于可执行文件目录，如果不存在，则使用提供的默认数据创建它。
func ensureFile(fileName string, defaultData []byte) (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("无法获取可执行文件路径: %w", err)
	}
	exeDir := filepath.Dir(exePath)
	filePath := filepath.Join(exeDir, fileName)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		if err := os.WriteFile(filePath, defaultData, 0644); err != nil {
			return "", fmt.Errorf("无法写入默认文件 %s: %w", fileName, err)
		}
		log.Printf("首次运行，已在 %s 生成默认 %s 文件", exeDir, fileName)
	} else if err != nil {
		return "", fmt.Errorf("检查文件 %s 时出错: %w", fileName, err)
	}
	return filePath, nil
}

func main() {
	// 定义命令行标志
	cliMode := flag.Bool("cli", false, "以命令行模式运行")
	flag.Parse()

	// 确保配置文件存在
	cfgPath, err := ensureFile("config.yaml", defaultConfigData)
	if err != nil {
		log.Fatalf("初始化配置文件失败: %v", err)
	}

	exeDir := filepath.Dir(cfgPath)

	if *cliMode {
		// --- 命令行模式 ---
		runCli(cfgPath, exeDir)
	} else {
		// --- Web 服务器模式 (默认) ---
		server.Start(8080, cfgPath)
	}
}

// runCli 包含原始的命令行执行逻辑
func runCli(cfgPath, exeDir string) {
	log.Println("--- 以命令行模式运行 ---")

	// Ctrl+C 中断测试时仍然写出已收集的结果
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. 加载配置
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("加载配置文件失败: %v", err)
	}
	log.Printf("配置加载成功：端点数=%d, 延迟探测次数=%d, 吞吐量时长=%ds", len(cfg.Endpoints), cfg.PingCount, cfg.ThroughputDuration)

	// 定义日志回调函数
	progressCallback := func(message string) {
		log.Println(message)
	}

	// 2. 运行测试引擎
	run, err := engine.Run(ctx, cfg, progressCallback)
	if err != nil {
		if run == nil {
			log.Fatalf("引擎运行时出错: %v", err)
		}
		log.Printf("测试提前结束: %v", err)
	}

	// 3. 汇总排名并打印报告
	summaries := report.Summarize(run.Records)
	fmt.Print(report.Render(run, summaries))

	// 4. 写入结果
	log.Println("写入结果文件...")
	resultJSONFile := filepath.Join(exeDir, cfg.OutputPrefix+".json")
	resultCSVFile := filepath.Join(exeDir, cfg.OutputPrefix+".csv")

	if err := output.WriteJSONFile(resultJSONFile, run, summaries); err != nil {
		log.Fatalf("写入 JSON 结果失败: %v", err)
	}
	if err := output.WriteCSVFile(resultCSVFile, run.Records); err != nil {
		log.Fatalf("写入 CSV 结果失败: %v", err)
	}
	log.Printf("结果已成功写入 %s 和 %s", resultJSONFile, resultCSVFile)

	if cfg.WriteCharts {
		latencyChart := filepath.Join(exeDir, cfg.OutputPrefix+"_latency.png")
		throughputChart := filepath.Join(exeDir, cfg.OutputPrefix+"_throughput.png")
		if err := output.WriteLatencyChart(latencyChart, summaries); err != nil {
			log.Printf("生成延迟图表失败: %v", err)
		} else if err := output.WriteThroughputChart(throughputChart, summaries); err != nil {
			log.Printf("生成吞吐量图表失败: %v", err)
		} else {
			log.Printf("图表已写入 %s 和 %s", latencyChart, throughputChart)
		}
	}

	log.Println("--- 所有任务已完成 ---")
}
