package engine

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"CDN_Endpoint_Tester_Go/internal/config"
)

// ResolveTimeout 单次 DNS 解析的超时
const ResolveTimeout = 5 * time.Second

// HostOf 从端点地址里剥出主机名,容忍带不带 scheme、带不带路径的写法
func HostOf(endpoint string) (string, error) {
	raw := endpoint
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("无法从端点 '%s' 解析出主机名", endpoint)
	}
	return u.Hostname(), nil
}

// newResolver 根据配置构造解析器,dns_server 非空时强制走指定服务器
func newResolver(dnsServer string) *net.Resolver {
	if dnsServer == "" {
		return net.DefaultResolver
	}
	return &net.Resolver{
		PreferGo: true,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			d := net.Dialer{Timeout: ResolveTimeout} // 为拨号本身也增加超时
			return d.DialContext(ctx, "udp", dnsServer)
		},
	}
}

// resolveEndpoint 解析端点主机名,返回首个符合地址族偏好的 IP
func resolveEndpoint(ctx context.Context, resolver *net.Resolver, cfg *config.Config, endpoint string) (string, error) {
	host, err := HostOf(endpoint)
	if err != nil {
		return "", err
	}

	// 端点写的就是 IP 时无需查询
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}

	var lookupType string
	switch cfg.IPVersion {
	case "ipv4":
		lookupType = "ip4"
	case "ipv6":
		lookupType = "ip6"
	default:
		lookupType = "ip"
	}

	ctx, cancel := context.WithTimeout(ctx, ResolveTimeout)
	defer cancel()

	ips, err := resolver.LookupIP(ctx, lookupType, host)
	if err != nil {
		return "", fmt.Errorf("域名 %s 解析失败: %w", host, err)
	}
	if len(ips) == 0 {
		return "", fmt.Errorf("域名 %s 没有解析出地址", host)
	}
	return ips[0].String(), nil
}
