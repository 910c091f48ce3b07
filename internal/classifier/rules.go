package classifier

import (
	"fmt"
	"strings"
)

// providerRule 一条托管商判定规则,规则表自上而下求值,先命中先生效
type providerRule struct {
	keywords []string // 任一关键字出现在小写机构名中即命中
	asns     []string // 或 ASN 号精确命中(不含 AS 前缀)
	generic  bool     // 泛化规则,标签里附上原始机构名
	label    string
}

// providerRules 托管商判定表。专有名字在前,已知 ASN 其次,
// 泛化的 hosting/isp 桶必须垫底,否则 "XX Cloud Hosting" 这类机构名会被抢走。
var providerRules = []providerRule{
	// 云厂商
	{keywords: []string{"cloudflare", "cf-", "cloud flare"}, label: "Cloudflare"},
	{keywords: []string{"amazon", "aws", "amazon.com", "ec2"}, label: "Amazon Web Services (AWS)"},
	{keywords: []string{"google", "gcp", "google cloud"}, label: "Google Cloud Platform (GCP)"},
	{keywords: []string{"microsoft", "azure", "msft"}, label: "Microsoft Azure"},
	{keywords: []string{"digitalocean", "digital ocean"}, label: "DigitalOcean"},
	{keywords: []string{"linode", "akamai"}, label: "Linode/Akamai"},
	{keywords: []string{"ovh", "ovhcloud"}, label: "OVH"},
	{keywords: []string{"hetzner"}, label: "Hetzner"},
	{keywords: []string{"vultr"}, label: "Vultr"},
	{keywords: []string{"alibaba", "aliyun"}, label: "Alibaba Cloud"},
	{keywords: []string{"oracle", "oraclecloud"}, label: "Oracle Cloud"},
	{keywords: []string{"ibm", "softlayer"}, label: "IBM Cloud"},
	{keywords: []string{"rackspace"}, label: "Rackspace"},
	{keywords: []string{"contabo"}, label: "Contabo"},

	// CDN 厂商
	{keywords: []string{"fastly"}, label: "Fastly CDN"},
	{keywords: []string{"cdn77"}, label: "CDN77"},
	{keywords: []string{"stackpath", "highwinds"}, label: "StackPath"},
	{keywords: []string{"bunny", "bunnycdn"}, label: "BunnyCDN"},

	// 机构名没写清楚时靠已知 ASN 号兜底
	{asns: []string{"13335"}, label: "Cloudflare"},
	{asns: []string{"16509", "14618"}, label: "Amazon Web Services (AWS)"},
	{asns: []string{"15169"}, label: "Google Cloud Platform (GCP)"},
	{asns: []string{"8075"}, label: "Microsoft Azure"},

	// 泛化桶,必须放在最后
	{keywords: []string{"hosting", "host", "server", "datacenter", "data center"}, generic: true, label: "Hosting Provider"},
	{keywords: []string{"telecom", "communications", "isp", "internet"}, generic: true, label: "ISP/Telecom"},
}

// ProviderOf 根据机构名和 ASN 号给出托管商标签。
// 对任意输入都有确定结果:规则表没命中时原样返回机构名,机构名为空返回 Unknown。
func ProviderOf(org, asn string) string {
	orgLower := strings.ToLower(org)
	asnNorm := strings.TrimPrefix(strings.ToLower(asn), "as")

	for _, rule := range providerRules {
		if rule.matches(orgLower, asnNorm) {
			if rule.generic {
				return fmt.Sprintf("%s (%s)", rule.label, org)
			}
			return rule.label
		}
	}

	if org == "" {
		return "Unknown"
	}
	return org
}

func (r providerRule) matches(orgLower, asn string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(orgLower, kw) {
			return true
		}
	}
	if asn == "" {
		return false
	}
	for _, a := range r.asns {
		if asn == a {
			return true
		}
	}
	return false
}
