// Package privacy keeps citizen-supplied values out of logs and audit events.
package privacy

import (
	"net"
	"strings"
	"unicode/utf8"
)

// Shape returns slog attributes describing a sensitive field without its value:
// whether it was supplied and its length in characters.
func Shape(field, value string) []any {
	trimmed := strings.TrimSpace(value)
	return []any{
		field + "_present", trimmed != "",
		field + "_length", utf8.RuneCountInString(trimmed),
	}
}

// AnonymizeIP truncates an address to its network prefix (/24 for IPv4, /48
// for IPv6) for events that outlive the request.
func AnonymizeIP(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "unknown"
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}
	return parsed.Mask(net.CIDRMask(48, 128)).String()
}
