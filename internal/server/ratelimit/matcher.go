package ratelimit

import "strings"

// exempt lists the routes that are never limited.
var exempt = map[string]bool{
	"GET /health":  true,
	"GET /metrics": true,
}

// MatchEndpoint returns the rule for method and path, an empty rule for exempt
// routes, or nil when nothing matches. A rule path ending in "/" covers every
// path below it. Exact rules win, then the longest prefix.
func MatchEndpoint(path, method string, configs []EndpointConfig) *EndpointConfig {
	if exempt[method+" "+path] {
		return &EndpointConfig{}
	}

	var best *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if c.Method != method {
			continue
		}
		if c.Path == path {
			return c
		}
		if strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) {
			if best == nil || len(c.Path) > len(best.Path) {
				best = c
			}
		}
	}
	return best
}

// bucketKey names the token bucket a request draws from. Rules with the same
// Bucket share tokens.
func bucketKey(rule *EndpointConfig, path, method string) string {
	if rule.Bucket != "" {
		return rule.Bucket
	}
	return method + " " + path
}
