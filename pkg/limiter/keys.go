package limiter

import (
	"net"
	"net/http"
	"strings"
)

const (
	// unknownKey buckets requests whose origin cannot be determined at all.
	// They throttle each other, which is the safe direction for garbage
	// traffic.
	unknownKey = "unknown"

	// maxSecondaryLen bounds the secondary-signal suffix so a hostile
	// user-agent cannot inflate key cardinality or memory.
	maxSecondaryLen = 50

	// keyDelimiter never appears in IPv4/IPv6 literals.
	keyDelimiter = "|"
)

// KeyFunc derives the bucketing key for a request. The default is
// ClientKey; callers that want a tighter fingerprint use FingerprintKey or
// supply their own.
type KeyFunc func(*http.Request) string

// SelectKey picks the first non-empty candidate, falling back to fallback
// and finally to "unknown". A non-empty secondary signal is appended
// truncated, delimiter-separated. It never fails: malformed inputs degrade
// to the shared "unknown" bucket instead of failing the request.
func SelectKey(candidates []string, fallback, secondary string) string {
	key := ""
	for _, c := range candidates {
		if c = strings.TrimSpace(c); c != "" {
			key = c
			break
		}
	}
	if key == "" {
		key = strings.TrimSpace(fallback)
	}
	if key == "" {
		key = unknownKey
	}
	if secondary != "" {
		if len(secondary) > maxSecondaryLen {
			secondary = secondary[:maxSecondaryLen]
		}
		key += keyDelimiter + secondary
	}
	return key
}

// ClientKey resolves the caller's address from the X-Forwarded-For chain,
// then X-Real-IP, then the peer address. The result is an approximation of
// client identity (NAT and shared proxies collapse onto one key); that is
// accepted, not a bug.
func ClientKey(r *http.Request) string {
	return SelectKey(addressCandidates(r), peerAddress(r), "")
}

// FingerprintKey is ClientKey plus a truncated user-agent, separating
// distinct clients behind one proxy at the cost of higher key cardinality.
func FingerprintKey(r *http.Request) string {
	return SelectKey(addressCandidates(r), peerAddress(r), r.UserAgent())
}

func addressCandidates(r *http.Request) []string {
	var out []string
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		out = append(out, strings.Split(fwd, ",")...)
	}
	return append(out, r.Header.Get("X-Real-IP"))
}

func peerAddress(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
