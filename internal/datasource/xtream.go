package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"CDN_Endpoint_Tester_Go/pkg/model"
)

const (
	// VerifyTimeout 验证账号调用的超时
	VerifyTimeout = 10 * time.Second
	// CatalogTimeout 拉取分类/频道列表的超时
	CatalogTimeout = 30 * time.Second
)

// Category 一个直播分类
type Category struct {
	ID   string `json:"category_id"`
	Name string `json:"category_name"`
}

// XtreamClient 访问 Xtream Codes 风格目录接口的客户端。
// 目录接口偶尔抽风,带少量重试;测速路径绝不重试,重试会污染测量结果。
type XtreamClient struct {
	client   *retryablehttp.Client
	endpoint string
	username string
	password string
}

// NewXtreamClient 创建目录客户端,endpoint 为端点基地址
func NewXtreamClient(endpoint, username, password string) *XtreamClient {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = nil
	return &XtreamClient{
		client:   rc,
		endpoint: strings.TrimRight(endpoint, "/"),
		username: username,
		password: password,
	}
}

// flexID 兼容接口里一会儿是数字一会儿是字符串的 ID 字段
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

// VerifyCredentials 检查账号状态,返回是否可用和接口报告的状态文本
func (c *XtreamClient) VerifyCredentials(ctx context.Context) (bool, string, error) {
	var data struct {
		UserInfo struct {
			Status string `json:"status"`
		} `json:"user_info"`
	}
	if err := c.getJSON(ctx, VerifyTimeout, c.apiURL(url.Values{}), &data); err != nil {
		return false, "", fmt.Errorf("验证账号失败: %w", err)
	}
	return data.UserInfo.Status == "Active", data.UserInfo.Status, nil
}

// GetLiveCategories 拉取直播分类列表
func (c *XtreamClient) GetLiveCategories(ctx context.Context) ([]Category, error) {
	params := url.Values{}
	params.Set("action", "get_live_categories")

	var raw []struct {
		ID   flexID `json:"category_id"`
		Name string `json:"category_name"`
	}
	if err := c.getJSON(ctx, CatalogTimeout, c.apiURL(params), &raw); err != nil {
		return nil, fmt.Errorf("拉取分类失败: %w", err)
	}

	categories := make([]Category, 0, len(raw))
	for _, entry := range raw {
		name := entry.Name
		if name == "" {
			name = "Unknown"
		}
		categories = append(categories, Category{ID: string(entry.ID), Name: name})
	}
	return categories, nil
}

// GetLiveStreams 拉取某个分类下的频道列表,categoryID 为空表示全部
func (c *XtreamClient) GetLiveStreams(ctx context.Context, categoryID string) ([]model.Channel, error) {
	params := url.Values{}
	params.Set("action", "get_live_streams")
	if categoryID != "" {
		params.Set("category_id", categoryID)
	}

	var raw []struct {
		StreamID flexID `json:"stream_id"`
		Name     string `json:"name"`
	}
	if err := c.getJSON(ctx, CatalogTimeout, c.apiURL(params), &raw); err != nil {
		return nil, fmt.Errorf("拉取频道失败: %w", err)
	}

	channels := make([]model.Channel, 0, len(raw))
	for _, entry := range raw {
		if entry.StreamID == "" {
			continue
		}
		name := entry.Name
		if name == "" {
			name = "Unknown"
		}
		channels = append(channels, model.Channel{ID: string(entry.StreamID), Name: name})
	}
	return channels, nil
}

// StreamURL 按 Xtream 的约定拼出频道的直播流地址
func StreamURL(endpoint, username, password, channelID string) string {
	return fmt.Sprintf("%s/live/%s/%s/%s.ts", strings.TrimRight(endpoint, "/"), username, password, channelID)
}

func (c *XtreamClient) apiURL(params url.Values) string {
	params.Set("username", c.username)
	params.Set("password", c.password)
	return fmt.Sprintf("%s/player_api.php?%s", c.endpoint, params.Encode())
}

func (c *XtreamClient) getJSON(ctx context.Context, timeout time.Duration, rawURL string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("无效的状态码: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}
