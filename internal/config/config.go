package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"CDN_Endpoint_Tester_Go/pkg/model"
)

// Config 结构用于映射 config.yaml 文件的内容。
// json 标签给 Web 界面用,键名与 yaml 保持一致。
type Config struct {
	// Xtream 账号,置空则只能测手工提供的频道列表
	Username  string `yaml:"username" json:"username"`
	Password  string `yaml:"password" json:"password"`
	UserAgent string `yaml:"user_agent" json:"user_agent"` // tivimate / vlc,或任意完整 UA 字符串

	// 待测端点与频道,可以直接写在配置里,也可以指到外部列表文件
	Endpoints     []string        `yaml:"endpoints" json:"endpoints"`
	EndpointsFile string          `yaml:"endpoints_file" json:"endpoints_file"`
	Channels      []model.Channel `yaml:"channels" json:"channels"`
	ChannelsFile  string          `yaml:"channels_file" json:"channels_file"`

	// 频道为空时自动从第一个端点的接口拉取
	AutoFetchChannels bool   `yaml:"auto_fetch_channels" json:"auto_fetch_channels"`
	CategoryID        string `yaml:"category_id" json:"category_id"` // 置空取全部分类
	MaxChannels       int    `yaml:"max_channels" json:"max_channels"`

	// 测试参数
	PingCount            int     `yaml:"ping_count" json:"ping_count"`
	PingIntervalMs       int     `yaml:"ping_interval_ms" json:"ping_interval_ms"`
	ThroughputDuration   int     `yaml:"throughput_duration" json:"throughput_duration"` // 秒
	SpeedTestRateLimitMB float64 `yaml:"speedtest_rate_limit_mb" json:"speedtest_rate_limit_mb"`
	EndpointConcurrency  int     `yaml:"endpoint_concurrency" json:"endpoint_concurrency"`
	IPVersion            string  `yaml:"ip_version" json:"ip_version"` // ipv4 / ipv6 / 留空自动
	DNSServer            string  `yaml:"dns_server" json:"dns_server"` // 如 1.1.1.1:53,留空用系统解析

	// 归属查询
	ClassifierAPI string `yaml:"classifier_api" json:"classifier_api"`
	GeoIPASNDB    string `yaml:"geoip_asn_db" json:"geoip_asn_db"`
	GeoIPCityDB   string `yaml:"geoip_city_db" json:"geoip_city_db"`

	// 输出
	OutputPrefix string `yaml:"output_prefix" json:"output_prefix"`
	WriteCharts  bool   `yaml:"write_charts" json:"write_charts"`
}

// LoadConfig 从指定路径加载和解析 YAML 配置文件
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults 补齐配置文件里没写的字段,保证引擎拿到的都是可用值
func (c *Config) ApplyDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = "tivimate"
	}
	if c.MaxChannels <= 0 {
		c.MaxChannels = 10
	}
	if c.PingCount <= 0 {
		c.PingCount = 5
	}
	if c.PingIntervalMs <= 0 {
		c.PingIntervalMs = 500
	}
	if c.ThroughputDuration <= 0 {
		c.ThroughputDuration = 5
	}
	if c.EndpointConcurrency <= 0 {
		c.EndpointConcurrency = 1
	}
	if c.ClassifierAPI == "" {
		c.ClassifierAPI = "https://ipapi.co"
	}
	if c.OutputPrefix == "" {
		c.OutputPrefix = "cdn_test_result"
	}
}
