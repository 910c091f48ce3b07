package tester

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// LatencyResult 包含一次延迟探测的汇总结果
type LatencyResult struct {
	AvgMs    float64
	JitterMs float64
	Samples  int
}

// TestLatency 对流地址连续发起多次 HEAD 探测,统计平均延迟和抖动。
// 每次从发出请求计时到收到响应头为止,两次探测之间固定停顿,
// 避免突发请求影响测量。一个有效样本都没有时返回错误,由调用方决定怎么记录。
func TestLatency(ctx context.Context, client *http.Client, streamURL, userAgent string, attempts int, interval time.Duration) (*LatencyResult, error) {
	if attempts <= 0 {
		attempts = 5
	}

	latencies := make([]float64, 0, attempts)
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(interval):
			}
		}

		request, err := http.NewRequestWithContext(ctx, http.MethodHead, streamURL, nil)
		if err != nil {
			return nil, fmt.Errorf("创建请求失败: %w", err)
		}
		request.Header.Set("User-Agent", userAgent)

		startTime := time.Now()
		response, err := client.Do(request)
		if err != nil {
			continue
		}
		delay := time.Since(startTime)

		io.Copy(io.Discard, response.Body)
		_ = response.Body.Close()

		if acceptedPingStatus(response.StatusCode) {
			latencies = append(latencies, float64(delay)/float64(time.Millisecond))
		}
	}

	if len(latencies) == 0 {
		return nil, fmt.Errorf("all probes failed")
	}

	return &LatencyResult{
		AvgMs:    mean(latencies),
		JitterMs: stdev(latencies),
		Samples:  len(latencies),
	}, nil
}

// mean 算术平均
func mean(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// stdev 样本标准差,样本数不足 2 时定义为 0
func stdev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sum float64
	for _, v := range values {
		d := v - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
