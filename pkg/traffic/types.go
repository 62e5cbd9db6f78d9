package traffic

import (
	"net/http"
	"strings"
)

// Header is a case-insensitive header map; keys are stored lowercase.
type Header map[string]string

func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[strings.ToLower(key)]
}

func (h Header) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

func (h Header) Del(key string) {
	delete(h, strings.ToLower(key))
}

func (h Header) Clone() Header {
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Request 中立的请求模型：外部拦截引擎送来待解析的请求描述
type Request struct {
	ID      string            `json:"id,omitempty"`
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers Header            `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
	Query   map[string]string `json:"query,omitempty"`   // 预解析的查询参数
	Cookies map[string]string `json:"cookies,omitempty"` // 预解析的 Cookie
}

// Response 中立的响应模型
type Response struct {
	StatusCode int    `json:"statusCode"`
	Headers    Header `json:"headers,omitempty"`
	Body       []byte `json:"body,omitempty"`
}

// NewRequest 创建初始化请求对象
func NewRequest() *Request {
	return &Request{
		Headers: make(Header),
		Query:   make(map[string]string),
		Cookies: make(map[string]string),
	}
}

// NewResponse 创建初始化响应对象
func NewResponse() *Response {
	return &Response{
		StatusCode: http.StatusOK,
		Headers:    make(Header),
	}
}
