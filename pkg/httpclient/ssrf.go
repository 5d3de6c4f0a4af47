package httpclient

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/vectorflow/vectorflow/pkg/config"
)

// validateURL checks urlStr against cfg's network ACL before it is dialed,
// covering both the initial fetch and every redirect hop.
func validateURL(urlStr string, cfg *config.Config) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme == "http" && !cfg.AllowHTTP {
		return fmt.Errorf("%w: plain http is not allowed", ErrSchemeNotAllowed)
	}
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: %s", ErrSchemeNotAllowed, scheme)
	}

	hostname := parsed.Hostname()
	if hostname == "" {
		return ErrMissingHostname
	}

	if len(cfg.AllowedDomains) > 0 {
		allowed := false
		for _, domain := range cfg.AllowedDomains {
			if hostname == domain || strings.HasSuffix(hostname, "."+domain) {
				allowed = true
				break
			}
		}
		if !allowed {
			return fmt.Errorf("%w: %s", ErrDomainNotAllowed, hostname)
		}
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		// Unresolvable at validation time; the dialer will fail later if the
		// name truly doesn't resolve. Domain checks above already applied.
		return nil
	}
	for _, ip := range ips {
		if err := validateIP(ip, cfg); err != nil {
			return fmt.Errorf("%s: %w", ip.String(), err)
		}
	}
	return nil
}

// ipClass is one independently toggleable network-ACL rule. validateIP walks
// classes in declared order and blocks on the first whose matches() fires
// and whose cfg gate isn't open — the same "one named condition checked at a
// time" shape as the Scheduler's own traversal breakers in pkg/engine.
type ipClass struct {
	matches func(ip net.IP) bool
	allowed func(cfg *config.Config) bool
	err     error
}

var ipClasses = []ipClass{
	{matches: net.IP.IsLoopback, allowed: func(cfg *config.Config) bool { return cfg.AllowLocalhost }, err: ErrLoopbackBlocked},
	{matches: isLinkLocal, allowed: func(cfg *config.Config) bool { return cfg.AllowLinkLocal }, err: ErrLinkLocalBlocked},
	{matches: newCIDRClassifier(privateRanges), allowed: func(cfg *config.Config) bool { return cfg.AllowPrivateIPs }, err: ErrPrivateIPBlocked},
	{matches: newExactClassifier(cloudMetadataIPs), allowed: func(cfg *config.Config) bool { return cfg.AllowCloudMetadata }, err: ErrCloudMetadataBlocked},
}

func validateIP(ip net.IP, cfg *config.Config) error {
	for _, class := range ipClasses {
		if !class.allowed(cfg) && class.matches(ip) {
			return class.err
		}
	}
	return nil
}

func isLinkLocal(ip net.IP) bool {
	return ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()
}

// privateRanges are the RFC 1918 + IPv6 ULA ranges a "private IP" classifier
// rejects by default.
var privateRanges = []string{
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"fc00::/7",
}

// cloudMetadataIPs are the well-known instance-metadata endpoints of the
// major cloud providers, which must never be reachable from a handler's URL
// fetch regardless of AllowPrivateIPs.
var cloudMetadataIPs = []string{
	"169.254.169.254",
	"100.100.100.200",
	"fd00:ec2::254",
}

// newCIDRClassifier pre-parses cidrs once and returns a matcher closing over
// the parsed *net.IPNet values, instead of re-parsing the CIDR list on every
// call.
func newCIDRClassifier(cidrs []string) func(net.IP) bool {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		if _, network, err := net.ParseCIDR(cidr); err == nil {
			nets = append(nets, network)
		}
	}
	return func(ip net.IP) bool {
		for _, network := range nets {
			if network.Contains(ip) {
				return true
			}
		}
		return false
	}
}

// newExactClassifier matches an IP against a fixed set of literal addresses.
func newExactClassifier(addrs []string) func(net.IP) bool {
	set := make(map[string]struct{}, len(addrs))
	for _, a := range addrs {
		set[a] = struct{}{}
	}
	return func(ip net.IP) bool {
		_, ok := set[ip.String()]
		return ok
	}
}
