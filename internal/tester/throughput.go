package tester

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/VividCortex/ewma"
	"golang.org/x/time/rate"
)

// ThroughputResult 包含一次下载测速的结果
type ThroughputResult struct {
	Mbps     float64 // 整段下载的平均吞吐量
	PeakMbps float64 // EWMA 平滑后的瞬时峰值
}

// TestThroughput 对流地址做一次限时下载测速。
// 从发出请求开始计时,按固定大小分块读取,到配置时长即停;
// 整体超时但已收到部分数据时,按配置时长折算出保守的下限值。
func TestThroughput(ctx context.Context, client *http.Client, streamURL, userAgent string, duration time.Duration, rateLimitMB float64) (*ThroughputResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	timeStart := time.Now()
	response, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求失败: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		// 将响应体内容附加到错误信息中，限制长度以防刷屏
		snippet, _ := io.ReadAll(io.LimitReader(response.Body, 200))
		if len(snippet) > 0 {
			return nil, fmt.Errorf("无效的状态码: %d, 响应: %s", response.StatusCode, snippet)
		}
		return nil, fmt.Errorf("无效的状态码: %d", response.StatusCode)
	}

	// 如果设置了速率限制，则创建限速器
	var limiter *rate.Limiter
	if rateLimitMB > 0 {
		limit := rate.Limit(rateLimitMB * 1024 * 1024)
		// 桶大小也设置为速率上限，允许一定的突发
		limiter = rate.NewLimiter(limit, int(rateLimitMB*1024*1024))
	}

	var (
		bytesRead  int64
		lastRead   int64
		peakBps    float64
		timedOut   bool
		timeSlice  = duration / 100
		sliceStart = timeStart
	)
	buffer := make([]byte, ChunkSize)
	e := ewma.NewMovingAverage()

	for {
		now := time.Now()
		// 到达配置时长,终止测速
		if now.Sub(timeStart) > duration {
			break
		}
		if timeSlice > 0 && now.Sub(sliceStart) >= timeSlice {
			e.Add(float64(bytesRead-lastRead) / now.Sub(sliceStart).Seconds())
			if v := e.Value(); v > peakBps {
				peakBps = v
			}
			lastRead = bytesRead
			sliceStart = now
		}

		// 如果有限速器，则等待到可以再读一个分块
		if limiter != nil {
			if err := limiter.WaitN(ctx, len(buffer)); err != nil {
				break
			}
		}

		n, rerr := response.Body.Read(buffer)
		bytesRead += int64(n)
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				break
			}
			if errors.Is(rerr, context.DeadlineExceeded) || os.IsTimeout(rerr) {
				timedOut = true
				break
			}
			return nil, fmt.Errorf("读取数据失败: %w", rerr)
		}
	}

	if timedOut && bytesRead == 0 {
		return nil, fmt.Errorf("下载超时且未收到数据")
	}

	seconds := time.Since(timeStart).Seconds()
	if timedOut {
		// 超时场景下实际耗时含拆线余量,按配置时长折算更保守
		seconds = duration.Seconds()
	}

	mbps := float64(bytesRead) * 8 / (seconds * 1e6)
	peakMbps := peakBps * 8 / 1e6
	if peakMbps < mbps {
		peakMbps = mbps
	}
	return &ThroughputResult{Mbps: mbps, PeakMbps: peakMbps}, nil
}
