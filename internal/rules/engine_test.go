package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mockbody/pkg/model"
	"mockbody/pkg/traffic"
)

func urlCond(mode, pattern string) model.Condition {
	return model.Condition{Type: "url", Mode: mode, Pattern: pattern}
}

func TestEvalConditions(t *testing.T) {
	t.Parallel()

	ctx := Ctx{
		URL:    "https://api.example.com/v1/users?page=2",
		Method: "POST",
		Headers: map[string]string{
			"content-type": "application/json",
			"x-api-key":    "secret-123",
		},
		Query:   map[string]string{"page": "2"},
		Cookies: map[string]string{"sid": "abc"},
		Body:    `{"user":{"name":"ada","roles":["admin"]}}`,
	}

	tests := []struct {
		name string
		cond model.Condition
		want bool
	}{
		{"url glob star", urlCond("", "*"), true},
		{"url glob suffix", urlCond("", "https://api.example.com*"), true},
		{"url prefix", urlCond("prefix", "https://api.example.com/v1"), true},
		{"url prefix miss", urlCond("prefix", "https://other"), false},
		{"url exact miss", urlCond("exact", "https://api.example.com/v1/users"), false},
		{"url regex", urlCond("regex", `/v\d+/users`), true},
		{"url regex invalid pattern", urlCond("regex", `([`), false},
		{"method match", model.Condition{Type: "method", Values: []string{"post", "PUT"}}, true},
		{"method miss", model.Condition{Type: "method", Values: []string{"GET"}}, false},
		{"header equals", model.Condition{Type: "header", Key: "content-type", Op: "equals", Value: "application/json"}, true},
		{"header contains", model.Condition{Type: "header", Key: "x-api-key", Op: "contains", Value: "secret"}, true},
		{"header present any op", model.Condition{Type: "header", Key: "x-api-key"}, true},
		{"header absent", model.Condition{Type: "header", Key: "x-missing", Op: "contains", Value: "x"}, false},
		{"query equals", model.Condition{Type: "query", Key: "page", Op: "equals", Value: "2"}, true},
		{"cookie regex", model.Condition{Type: "cookie", Key: "sid", Op: "regex", Value: `^a.c$`}, true},
		{"text contains", model.Condition{Type: "text", Op: "contains", Value: `"ada"`}, true},
		{"json path equals", model.Condition{Type: "json", Path: "user.name", Op: "equals", Value: "ada"}, true},
		{"json array element", model.Condition{Type: "json", Path: "user.roles.0", Op: "equals", Value: "admin"}, true},
		{"json missing path", model.Condition{Type: "json", Path: "user.email", Op: "equals", Value: "x"}, false},
		{"unknown type", model.Condition{Type: "mystery"}, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, cond(ctx, tt.cond))
		})
	}
}

func TestEvalCombinators(t *testing.T) {
	t.Parallel()

	ctx := Ctx{URL: "https://example.com/a", Method: "GET"}

	m := model.Match{
		AllOf:  []model.Condition{urlCond("prefix", "https://example.com")},
		NoneOf: []model.Condition{{Type: "method", Values: []string{"DELETE"}}},
	}
	assert.True(t, matchDef(ctx, m))

	m.AnyOf = []model.Condition{{Type: "method", Values: []string{"POST"}}}
	assert.False(t, matchDef(ctx, m), "anyOf with no hit must fail the match")
}

func TestEvalPicksHighestPriority(t *testing.T) {
	t.Parallel()

	defs := []model.HandlerDef{
		{ID: "low", Priority: 1, Match: model.Match{AllOf: []model.Condition{urlCond("", "*")}}},
		{ID: "high", Priority: 10, Match: model.Match{AllOf: []model.Condition{urlCond("", "*")}}},
		{ID: "miss", Priority: 99, Match: model.Match{AllOf: []model.Condition{urlCond("exact", "nope")}}},
	}
	e := New(defs)

	res := e.Eval(Ctx{URL: "https://example.com"})
	require.NotNil(t, res)
	assert.Equal(t, model.HandlerID("high"), res.HandlerID)

	stats := e.Stats()
	assert.EqualValues(t, 1, stats.Total)
	assert.EqualValues(t, 1, stats.Matched)
	assert.EqualValues(t, 1, stats.ByHandler["high"])
}

func TestEvalShortCircuitStopsScan(t *testing.T) {
	t.Parallel()

	defs := []model.HandlerDef{
		{ID: "first", Priority: 1, Mode: "short_circuit", Match: model.Match{AllOf: []model.Condition{urlCond("", "*")}}},
		{ID: "second", Priority: 10, Match: model.Match{AllOf: []model.Condition{urlCond("", "*")}}},
	}
	e := New(defs)

	res := e.Eval(Ctx{URL: "https://example.com"})
	require.NotNil(t, res)
	assert.Equal(t, model.HandlerID("first"), res.HandlerID)
}

func TestEvalNoMatch(t *testing.T) {
	t.Parallel()

	e := New(nil)
	assert.Nil(t, e.Eval(Ctx{URL: "https://example.com"}))
}

func TestBuildContext(t *testing.T) {
	t.Parallel()

	req := &traffic.Request{
		URL:    "https://example.com/path?Debug=1&q=go",
		Method: "GET",
		Headers: traffic.Header{
			"content-type": "text/html",
			"cookie":       "SID=xyz; theme=dark",
		},
		Body: []byte("hello"),
	}

	ctx := BuildContext(req)
	assert.Equal(t, "text/html", ctx.Headers["content-type"])
	assert.Equal(t, "1", ctx.Query["debug"], "query keys are lowercased")
	assert.Equal(t, "go", ctx.Query["q"])
	assert.Equal(t, "xyz", ctx.Cookies["sid"], "cookies parsed from the header")
	assert.Equal(t, "dark", ctx.Cookies["theme"])
	assert.Equal(t, "hello", ctx.Body)
}
