package ch

import (
	"os"
	"runtime"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"

	"modwatch/internal/core/version"
)

// BuildClientInfo tags every connection with the binary role and build stamp
// so system.query_log can tell crawl writes from one-off recheck runs
func BuildClientInfo(role, app string) clickhouse.ClientInfo {
	bi := version.Info()
	host, _ := os.Hostname()

	products := []struct{ Name, Version string }{
		{Name: orUnknown(app), Version: orUnknown(bi.Version)},
		{Name: "role", Version: orUnknown(role)},
		{Name: "commit", Version: orUnknown(bi.Commit)},
		{Name: "go", Version: runtime.Version()},
	}
	if host = strings.TrimSpace(host); host != "" {
		products = append(products, struct{ Name, Version string }{Name: "host", Version: host})
	}
	return clickhouse.ClientInfo{Products: products}
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "unknown"
	}
	return s
}
