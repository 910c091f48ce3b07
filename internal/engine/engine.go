package engine

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"CDN_Endpoint_Tester_Go/internal/classifier"
	"CDN_Endpoint_Tester_Go/internal/config"
	"CDN_Endpoint_Tester_Go/internal/datasource"
	"CDN_Endpoint_Tester_Go/internal/tester"
	"CDN_Endpoint_Tester_Go/pkg/model"
)

// ProgressCallback 是一个用于报告进度的回调函数类型
type ProgressCallback func(message string)

const (
	// ProbeTimeout 单次延迟探测的超时
	ProbeTimeout = 10 * time.Second
	// StreamTimeoutGrace 吞吐量客户端在测试时长之外的余量
	StreamTimeoutGrace = 5 * time.Second
	// ChannelPause 相邻频道测试之间的停顿
	ChannelPause = 1 * time.Second
	// EndpointPause 相邻端点测试之间的停顿
	EndpointPause = 1 * time.Second
)

// RunResult 一次完整测试的产物
type RunResult struct {
	RunID     string               `json:"run_id"`
	StartedAt time.Time            `json:"started_at"`
	UserAgent string               `json:"user_agent"`
	Records   []model.ResultRecord `json:"records"`
}

// runner 聚合一次运行要用到的共享件,避免层层传参
type runner struct {
	cfg          *config.Config
	userAgent    string
	resolver     *net.Resolver
	classifier   *classifier.Classifier
	probeClient  *http.Client
	streamClient *http.Client
	progressCb   ProgressCallback
}

// Run 启动整套端点测试流程。输入校验失败立即返回错误;
// 测试过程中的网络失败只会落到记录里,不会中断流程。
// ctx 被取消时返回已收集的部分结果和 ctx 的错误。
func Run(ctx context.Context, cfg *config.Config, progressCb ProgressCallback) (*RunResult, error) {
	if progressCb == nil {
		progressCb = func(string) {}
	}

	run := &RunResult{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
		UserAgent: tester.ResolveUserAgent(cfg.UserAgent),
		Records:   make([]model.ResultRecord, 0),
	}

	// --- 1. 数据源 ---
	progressCb("步骤 1/3: 准备端点与频道列表...")
	endpoints, err := loadEndpoints(cfg)
	if err != nil {
		return nil, err
	}
	channels, err := loadChannels(ctx, cfg, endpoints, progressCb)
	if err != nil {
		return nil, err
	}
	progressCb(fmt.Sprintf("待测端点 %d 个,频道 %d 个。", len(endpoints), len(channels)))

	// --- 2. 验证账号 ---
	if cfg.Username != "" {
		progressCb("步骤 2/3: 验证账号...")
		xc := datasource.NewXtreamClient(endpoints[0], cfg.Username, cfg.Password)
		ok, status, verr := xc.VerifyCredentials(ctx)
		switch {
		case verr != nil:
			log.Printf("账号验证失败: %v", verr)
			progressCb("账号验证失败,继续测试(流地址可能全部拒绝)。")
		case !ok:
			progressCb(fmt.Sprintf("警告: 账号状态为 %s,继续测试。", status))
		default:
			progressCb("账号状态正常。")
		}
	} else {
		progressCb("步骤 2/3: 未配置账号,跳过验证。")
	}

	// --- 3. 逐端点测试 ---
	progressCb(fmt.Sprintf("步骤 3/3: 逐端点测试 (%d 个端点 × %d 个频道)...", len(endpoints), len(channels)))
	transport := tester.NewPooledTransport()
	r := &runner{
		cfg:          cfg,
		userAgent:    run.UserAgent,
		resolver:     newResolver(cfg.DNSServer),
		classifier:   classifier.New(cfg.ClassifierAPI, cfg.GeoIPASNDB, cfg.GeoIPCityDB),
		probeClient:  tester.NewProbeClient(transport, ProbeTimeout),
		streamClient: tester.NewStreamClient(transport, time.Duration(cfg.ThroughputDuration)*time.Second+StreamTimeoutGrace),
		progressCb:   progressCb,
	}

	if cfg.EndpointConcurrency > 1 {
		records, perr := r.testEndpointsParallel(ctx, endpoints, channels)
		run.Records = append(run.Records, records...)
		if perr != nil {
			progressCb("测试被中断,保留已收集的结果。")
			return run, perr
		}
	} else {
		for i, endpoint := range endpoints {
			if i > 0 {
				if serr := sleepCtx(ctx, EndpointPause); serr != nil {
					progressCb("测试被中断,保留已收集的结果。")
					return run, serr
				}
			}
			records, terr := r.testEndpoint(ctx, endpoint, channels)
			run.Records = append(run.Records, records...)
			if terr != nil {
				progressCb("测试被中断,保留已收集的结果。")
				return run, terr
			}
		}
	}

	progressCb(fmt.Sprintf("全部端点测试完成,共 %d 条记录。", len(run.Records)))
	return run, nil
}

// --- 数据源准备 ---

func loadEndpoints(cfg *config.Config) ([]string, error) {
	seen := make(map[string]struct{})
	var endpoints []string
	appendEndpoint := func(e string) {
		e = strings.TrimRight(strings.TrimSpace(e), "/")
		if e == "" {
			return
		}
		if _, ok := seen[e]; ok {
			return
		}
		seen[e] = struct{}{}
		endpoints = append(endpoints, e)
	}

	for _, e := range cfg.Endpoints {
		appendEndpoint(e)
	}
	if cfg.EndpointsFile != "" {
		fromFile, err := datasource.LoadEndpointsFromFile(cfg.EndpointsFile)
		if err != nil {
			return nil, err
		}
		for _, e := range fromFile {
			appendEndpoint(e)
		}
	}

	if len(endpoints) == 0 {
		return nil, fmt.Errorf("没有配置任何待测端点")
	}
	return endpoints, nil
}

func loadChannels(ctx context.Context, cfg *config.Config, endpoints []string, progressCb ProgressCallback) ([]model.Channel, error) {
	var channels []model.Channel
	for _, ch := range cfg.Channels {
		if ch.ID == "" {
			continue
		}
		if ch.Name == "" {
			ch.Name = ch.ID
		}
		channels = append(channels, ch)
	}

	if cfg.ChannelsFile != "" {
		fromFile, err := datasource.LoadChannelsFromFile(cfg.ChannelsFile)
		if err != nil {
			return nil, err
		}
		channels = append(channels, fromFile...)
	}

	// 没给频道但给了账号,就从第一个端点的目录接口自动拉
	if len(channels) == 0 && cfg.AutoFetchChannels && cfg.Username != "" {
		progressCb("频道列表为空,从第一个端点自动拉取...")
		xc := datasource.NewXtreamClient(endpoints[0], cfg.Username, cfg.Password)
		fetched, err := xc.GetLiveStreams(ctx, cfg.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("自动拉取频道失败: %w", err)
		}
		if len(fetched) > cfg.MaxChannels {
			fetched = fetched[:cfg.MaxChannels]
		}
		channels = fetched
		progressCb(fmt.Sprintf("拉取到 %d 个频道。", len(channels)))
	}

	if len(channels) == 0 {
		return nil, fmt.Errorf("没有可测试的频道")
	}
	return channels, nil
}

// --- 逐端点测试 ---

// testEndpoint 按固定顺序测完一个端点:解析 → 归属 → 逐频道延迟+吞吐。
// 解析失败时为每个频道合成一条失败记录,跳过归属和探测。
// 返回的 error 只可能是 ctx 取消,此时 records 是已完成的部分。
func (r *runner) testEndpoint(ctx context.Context, endpoint string, channels []model.Channel) ([]model.ResultRecord, error) {
	records := make([]model.ResultRecord, 0, len(channels))
	r.progressCb(fmt.Sprintf("开始测试端点: %s", endpoint))

	ip, err := resolveEndpoint(ctx, r.resolver, r.cfg, endpoint)
	if err != nil {
		if ctx.Err() != nil {
			return records, ctx.Err()
		}
		log.Printf("端点 %s 解析失败: %v", endpoint, err)
		r.progressCb(fmt.Sprintf("端点 %s DNS 解析失败,跳过探测。", endpoint))
		for _, ch := range channels {
			records = append(records, failureRecord(endpoint, ch, "N/A", model.Classification{}, "DNS resolution failed"))
		}
		return records, nil
	}
	r.progressCb(fmt.Sprintf("端点 %s 解析到 %s", endpoint, ip))

	info := r.classifier.Classify(ctx, ip)
	if info.HostingProvider != "" {
		r.progressCb(fmt.Sprintf("归属: %s | %s", info.HostingProvider, info.Geolocation))
	}

	for i, ch := range channels {
		if i > 0 {
			if serr := sleepCtx(ctx, ChannelPause); serr != nil {
				return records, serr
			}
		}
		record, terr := r.testChannel(ctx, endpoint, ip, info, ch)
		if terr != nil {
			return records, terr
		}
		records = append(records, record)
	}
	return records, nil
}

// testChannel 测一个 (端点, 频道) 组合。延迟失败产出失败记录;
// 延迟成功后吞吐量失败仍算成功记录,吞吐按 0 计,原因写进 ErrorMessage,
// 下游既保持聚合口径兼容,也能把两种情况区分开。
func (r *runner) testChannel(ctx context.Context, endpoint, ip string, info model.Classification, ch model.Channel) (model.ResultRecord, error) {
	if err := ctx.Err(); err != nil {
		return model.ResultRecord{}, err
	}

	streamURL := datasource.StreamURL(endpoint, r.cfg.Username, r.cfg.Password, ch.ID)
	r.progressCb(fmt.Sprintf("  测试频道: %s (ID: %s)", ch.Name, ch.ID))

	lat, err := tester.TestLatency(ctx, r.probeClient, streamURL, r.userAgent,
		r.cfg.PingCount, time.Duration(r.cfg.PingIntervalMs)*time.Millisecond)
	if err != nil {
		if ctx.Err() != nil {
			return model.ResultRecord{}, ctx.Err()
		}
		log.Printf("频道 %s 延迟探测失败: %v", ch.Name, err)
		r.progressCb(fmt.Sprintf("  频道 %s 无法连通。", ch.Name))
		return failureRecord(endpoint, ch, ip, info, "Connection failed"), nil
	}
	r.progressCb(fmt.Sprintf("  延迟 %.1fms, 抖动 %.1fms (%d 个样本)", lat.AvgMs, lat.JitterMs, lat.Samples))

	record := model.ResultRecord{
		Endpoint:        endpoint,
		ChannelID:       ch.ID,
		ChannelName:     ch.Name,
		Timestamp:       time.Now().Format(time.RFC3339),
		AvgLatencyMs:    lat.AvgMs,
		JitterMs:        lat.JitterMs,
		IPAddress:       ip,
		ASN:             info.ASN,
		Geolocation:     info.Geolocation,
		HostingProvider: info.HostingProvider,
		SuccessRate:     100,
	}

	duration := time.Duration(r.cfg.ThroughputDuration) * time.Second
	thr, err := tester.TestThroughput(ctx, r.streamClient, streamURL, r.userAgent, duration, r.cfg.SpeedTestRateLimitMB)
	if err != nil {
		if ctx.Err() != nil {
			return model.ResultRecord{}, ctx.Err()
		}
		log.Printf("频道 %s 吞吐量测试失败: %v", ch.Name, err)
		r.progressCb(fmt.Sprintf("  频道 %s 吞吐量测试失败,按 0 记录。", ch.Name))
		record.ErrorMessage = "Throughput test failed"
		return record, nil
	}

	record.ThroughputMbps = thr.Mbps
	record.PeakThroughputMbps = thr.PeakMbps
	r.progressCb(fmt.Sprintf("  吞吐量 %.2f Mbps (峰值 %.2f Mbps)", thr.Mbps, thr.PeakMbps))
	return record, nil
}

// testEndpointsParallel 有限并发地测试端点。每个端点的结果写进自己的槽位,
// 展平后的顺序仍然等于配置顺序。并发时端点间停顿没有意义,直接省略。
func (r *runner) testEndpointsParallel(ctx context.Context, endpoints []string, channels []model.Channel) ([]model.ResultRecord, error) {
	slots := make([][]model.ResultRecord, len(endpoints))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.EndpointConcurrency)

	for i, endpoint := range endpoints {
		g.Go(func() error {
			records, err := r.testEndpoint(gctx, endpoint, channels)
			slots[i] = records
			return err
		})
	}
	err := g.Wait()

	var flat []model.ResultRecord
	for _, slot := range slots {
		flat = append(flat, slot...)
	}
	return flat, err
}

// failureRecord 合成一条失败记录,指标全零,原因写进 ErrorMessage
func failureRecord(endpoint string, ch model.Channel, ip string, info model.Classification, reason string) model.ResultRecord {
	return model.ResultRecord{
		Endpoint:        endpoint,
		ChannelID:       ch.ID,
		ChannelName:     ch.Name,
		Timestamp:       time.Now().Format(time.RFC3339),
		IPAddress:       ip,
		ASN:             info.ASN,
		Geolocation:     info.Geolocation,
		HostingProvider: info.HostingProvider,
		SuccessRate:     0,
		ErrorMessage:    reason,
	}
}

// sleepCtx 可被取消的停顿
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
