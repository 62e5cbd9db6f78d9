package rules

import (
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"mockbody/pkg/model"
)

// Engine picks the mock handler for a request description. Handlers are
// evaluated by priority; "short_circuit" mode stops the scan at the first
// match.
type Engine struct {
	mu    sync.RWMutex
	defs  []model.HandlerDef
	stats model.EngineStats
}

func New(defs []model.HandlerDef) *Engine {
	return &Engine{
		defs:  defs,
		stats: model.EngineStats{ByHandler: make(map[model.HandlerID]int64)},
	}
}

func (e *Engine) Update(defs []model.HandlerDef) {
	e.mu.Lock()
	e.defs = defs
	e.mu.Unlock()
}

// Ctx is the normalized request view conditions run against. Header, query
// and cookie keys are lowercase.
type Ctx struct {
	URL     string
	Method  string
	Headers map[string]string
	Query   map[string]string
	Cookies map[string]string
	Body    string
}

type Result struct {
	HandlerID model.HandlerID
}

func (e *Engine) Eval(ctx Ctx) *Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats.Total++
	var chosen *model.HandlerDef
	for i := range e.defs {
		d := &e.defs[i]
		if matchDef(ctx, d.Match) {
			if chosen == nil || d.Priority > chosen.Priority {
				chosen = d
				if d.Mode == "short_circuit" {
					break
				}
			}
		}
	}
	if chosen == nil {
		return nil
	}
	e.stats.Matched++
	e.stats.ByHandler[chosen.ID]++
	return &Result{HandlerID: chosen.ID}
}

// Stats returns a copy of the evaluation counters.
func (e *Engine) Stats() model.EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := model.EngineStats{
		Total:     e.stats.Total,
		Matched:   e.stats.Matched,
		ByHandler: make(map[model.HandlerID]int64, len(e.stats.ByHandler)),
	}
	for k, v := range e.stats.ByHandler {
		out.ByHandler[k] = v
	}
	return out
}

func matchDef(ctx Ctx, m model.Match) bool {
	ok := true
	if len(m.AllOf) > 0 {
		ok = ok && allOf(ctx, m.AllOf)
	}
	if len(m.AnyOf) > 0 {
		ok = ok && anyOf(ctx, m.AnyOf)
	}
	if len(m.NoneOf) > 0 {
		ok = ok && noneOf(ctx, m.NoneOf)
	}
	return ok
}

func allOf(ctx Ctx, cs []model.Condition) bool {
	for i := range cs {
		if !cond(ctx, cs[i]) {
			return false
		}
	}
	return true
}

func anyOf(ctx Ctx, cs []model.Condition) bool {
	for i := range cs {
		if cond(ctx, cs[i]) {
			return true
		}
	}
	return false
}

func noneOf(ctx Ctx, cs []model.Condition) bool { return !anyOf(ctx, cs) }

func cond(ctx Ctx, c model.Condition) bool {
	switch c.Type {
	case "url":
		switch c.Mode {
		case "prefix":
			return strings.HasPrefix(ctx.URL, c.Pattern)
		case "regex":
			return matchRegex(ctx.URL, c.Pattern)
		case "exact":
			return ctx.URL == c.Pattern
		default:
			return glob(ctx.URL, c.Pattern)
		}
	case "method":
		for _, v := range c.Values {
			if strings.EqualFold(ctx.Method, v) {
				return true
			}
		}
		return false
	case "header":
		return opMatch(ctx.Headers[c.Key], hasKey(ctx.Headers, c.Key), c)
	case "query":
		return opMatch(ctx.Query[c.Key], hasKey(ctx.Query, c.Key), c)
	case "cookie":
		return opMatch(ctx.Cookies[c.Key], hasKey(ctx.Cookies, c.Key), c)
	case "text":
		if ctx.Body == "" {
			return false
		}
		return opMatch(ctx.Body, true, c)
	case "json":
		if ctx.Body == "" {
			return false
		}
		res := gjson.Get(ctx.Body, c.Path)
		if !res.Exists() {
			return false
		}
		return opMatch(res.String(), true, c)
	default:
		return false
	}
}

func hasKey(m map[string]string, k string) bool {
	_, ok := m[k]
	return ok
}

func opMatch(v string, present bool, c model.Condition) bool {
	if !present {
		return false
	}
	switch c.Op {
	case "equals":
		return v == c.Value
	case "contains":
		return strings.Contains(v, c.Value)
	case "regex":
		return matchRegex(v, c.Value)
	default:
		return true
	}
}

func matchRegex(s, pattern string) bool {
	re, err := regexCache.get(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

func glob(s, pattern string) bool {
	if pattern == "*" {
		return true
	}
	if strings.HasPrefix(pattern, "*") && strings.HasSuffix(s, strings.TrimPrefix(pattern, "*")) {
		return true
	}
	if strings.HasSuffix(pattern, "*") && strings.HasPrefix(s, strings.TrimSuffix(pattern, "*")) {
		return true
	}
	return s == pattern
}
