package tester

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

const (
	// MaxConnections 整个测试过程允许的最大并发连接数
	MaxConnections = 10
	// ChunkSize 吞吐量测试每次读取的字节数
	ChunkSize = 8192
)

// UserAgents 预置的播放器 UA,配置里写别名即可
var UserAgents = map[string]string{
	"tivimate": "TiviMate/4.4.0 (Android 11)",
	"vlc":      "VLC/3.0.18 LibVLC/3.0.18",
}

// ResolveUserAgent 把 UA 别名换成完整 UA,不认识的别名当作完整 UA 原样使用
func ResolveUserAgent(name string) string {
	if ua, ok := UserAgents[name]; ok {
		return ua
	}
	if name == "" {
		return UserAgents["tivimate"]
	}
	return name
}

// acceptedPingStatus 延迟探测认可的状态码。
// 探测的是链路可达性而不是鉴权结果,所以 302/401/403 也算有效样本。
func acceptedPingStatus(code int) bool {
	switch code {
	case http.StatusOK, http.StatusFound, http.StatusUnauthorized, http.StatusForbidden:
		return true
	}
	return false
}

// NewPooledTransport 创建共享连接池,并发连接数对齐 MaxConnections。
// 延迟和吞吐量客户端共用同一个池,避免测速时互相抢占本地带宽之外再抢连接。
func NewPooledTransport() *http.Transport {
	t := cleanhttp.DefaultPooledTransport()
	t.MaxConnsPerHost = MaxConnections
	t.MaxIdleConns = MaxConnections
	t.MaxIdleConnsPerHost = MaxConnections
	return t
}

// NewProbeClient 延迟探测客户端,跟随重定向,整体超时由调用方指定
func NewProbeClient(transport *http.Transport, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// NewStreamClient 吞吐量测试客户端,超时应为测试时长加余量
func NewStreamClient(transport *http.Transport, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
