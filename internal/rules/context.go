package rules

import (
	"net/url"
	"strings"

	"mockbody/pkg/traffic"
)

// BuildContext normalizes a request description into the view the engine
// evaluates: lowercase header/query/cookie keys, query parsed from the URL
// when the request carries none, cookies split out of the Cookie header.
func BuildContext(req *traffic.Request) Ctx {
	headers := map[string]string{}
	query := map[string]string{}
	cookies := map[string]string{}

	for k, v := range req.Headers {
		headers[strings.ToLower(k)] = v
	}

	for k, v := range req.Query {
		query[strings.ToLower(k)] = v
	}
	if len(query) == 0 && req.URL != "" {
		if u, err := url.Parse(req.URL); err == nil {
			for key, vals := range u.Query() {
				if len(vals) > 0 {
					query[strings.ToLower(key)] = vals[0]
				}
			}
		}
	}

	for k, v := range req.Cookies {
		cookies[strings.ToLower(k)] = v
	}
	if len(cookies) == 0 {
		if raw, ok := headers["cookie"]; ok {
			for name, val := range parseCookie(raw) {
				cookies[strings.ToLower(name)] = val
			}
		}
	}

	return Ctx{
		URL:     req.URL,
		Method:  req.Method,
		Headers: headers,
		Query:   query,
		Cookies: cookies,
		Body:    string(req.Body),
	}
}

func parseCookie(s string) map[string]string {
	out := make(map[string]string)
	for _, p := range strings.Split(s, ";") {
		kv := strings.SplitN(strings.TrimSpace(p), "=", 2)
		if len(kv) == 2 {
			out[kv[0]] = kv[1]
		}
	}
	return out
}
