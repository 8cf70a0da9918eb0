package probe

import (
	"context"
	"net/url"
	"strings"
)

// DNSChecker resolves the host part of a URL target.
type DNSChecker struct {
	resolver Resolver
}

func NewDNSChecker() *DNSChecker {
	return &DNSChecker{}
}

func (d *DNSChecker) Check(ctx context.Context, target string) CheckResult {
	host := extractHost(target)
	var dns DNSStatus
	if d.resolver != nil {
		dns = checkDNS(ctx, d.resolver, host)
	} else {
		dns = CheckDNS(ctx, host)
	}

	msg := string(dns.Class)
	if dns.CNAME != "" {
		msg += " (cname " + dns.CNAME + ")"
	}
	if dns.ResolverError != "" {
		msg += ": " + dns.ResolverError
	}
	return CheckResult{
		Name:    "DNS " + host,
		Success: dns.Class == DNSResolves || dns.Class == DNSLiteralIP,
		Message: msg,
	}
}

func extractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return strings.TrimSpace(raw)
	}
	return u.Hostname()
}
