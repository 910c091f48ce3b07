package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oschwald/geoip2-golang"

	"CDN_Endpoint_Tester_Go/pkg/model"
)

// LookupTimeout 单次归属查询的超时上限
const LookupTimeout = 5 * time.Second

// Classifier 查询端点 IP 的 ASN、地理位置和托管商。
// 先查在线接口,失败且配置了本地 GeoLite2 库时降级到本地查询,
// 再失败就返回空值。归属信息是锦上添花,查不到不能影响测试流程。
type Classifier struct {
	client  *http.Client
	apiBase string
	asnDB   string
	cityDB  string
}

// New 创建 Classifier。apiBase 形如 https://ipapi.co;
// asnDB/cityDB 是本地 GeoLite2 mmdb 路径,留空表示不启用本地降级。
func New(apiBase, asnDB, cityDB string) *Classifier {
	return &Classifier{
		client:  &http.Client{Timeout: LookupTimeout},
		apiBase: strings.TrimRight(apiBase, "/"),
		asnDB:   asnDB,
		cityDB:  cityDB,
	}
}

// ipapiResponse 在线接口返回里需要的字段
type ipapiResponse struct {
	ASN         string `json:"asn"`
	Org         string `json:"org"`
	City        string `json:"city"`
	CountryName string `json:"country_name"`
}

// Classify 查询单个 IP 的归属信息。不返回错误,查不到的字段留空。
func (c *Classifier) Classify(ctx context.Context, ip string) model.Classification {
	if info, ok := c.lookupAPI(ctx, ip); ok {
		return info
	}
	if info, ok := c.lookupLocal(ip); ok {
		return info
	}
	return model.Classification{}
}

// lookupAPI 请求 ipapi.co 风格的在线接口
func (c *Classifier) lookupAPI(ctx context.Context, ip string) (model.Classification, bool) {
	url := fmt.Sprintf("%s/%s/json/", c.apiBase, ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.Classification{}, false
	}

	resp, err := c.client.Do(req)
	if err != nil {
		log.Printf("归属查询失败 %s: %v", ip, err)
		return model.Classification{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		log.Printf("归属查询失败 %s: 状态码 %d", ip, resp.StatusCode)
		return model.Classification{}, false
	}

	var data ipapiResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		log.Printf("归属查询解析失败 %s: %v", ip, err)
		return model.Classification{}, false
	}

	return buildClassification(data.ASN, data.Org, data.City, data.CountryName), true
}

// lookupLocal 查询本地 GeoLite2 库。只在一次测试里查几个 IP,按需打开即可。
func (c *Classifier) lookupLocal(ip string) (model.Classification, bool) {
	if c.asnDB == "" && c.cityDB == "" {
		return model.Classification{}, false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return model.Classification{}, false
	}

	var (
		info      model.Classification
		found     bool
		org       string
		asnNumber string
	)

	if c.asnDB != "" {
		db, err := geoip2.Open(c.asnDB)
		if err != nil {
			log.Printf("打开本地 ASN 库失败: %v", err)
		} else {
			if rec, err := db.ASN(parsed); err == nil && rec.AutonomousSystemNumber != 0 {
				asnNumber = strconv.FormatUint(uint64(rec.AutonomousSystemNumber), 10)
				org = rec.AutonomousSystemOrganization
				info.ASN = fmt.Sprintf("AS%s - %s", asnNumber, orUnknown(org))
				found = true
			}
			db.Close()
		}
	}

	if c.cityDB != "" {
		db, err := geoip2.Open(c.cityDB)
		if err != nil {
			log.Printf("打开本地城市库失败: %v", err)
		} else {
			if rec, err := db.City(parsed); err == nil {
				city := rec.City.Names["en"]
				country := rec.Country.Names["en"]
				if city != "" || country != "" {
					info.Geolocation = fmt.Sprintf("%s, %s", orUnknown(city), orUnknown(country))
					found = true
				}
			}
			db.Close()
		}
	}

	if found {
		info.HostingProvider = ProviderOf(org, asnNumber)
	}
	return info, found
}

// buildClassification 把原始查询字段拼成统一的展示格式
func buildClassification(asn, org, city, country string) model.Classification {
	asnLabel := asn
	if asnLabel != "" && !strings.HasPrefix(asnLabel, "AS") {
		asnLabel = "AS" + asnLabel
	}
	return model.Classification{
		ASN:             fmt.Sprintf("%s - %s", orUnknown(asnLabel), orUnknown(org)),
		Geolocation:     fmt.Sprintf("%s, %s", orUnknown(city), orUnknown(country)),
		HostingProvider: ProviderOf(org, asn),
	}
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
