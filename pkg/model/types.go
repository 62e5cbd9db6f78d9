package model

type SessionID string
type HandlerID string

// Condition 单条匹配条件
type Condition struct {
	Type    string   `json:"type"`              // url | method | header | query | cookie | text | json
	Mode    string   `json:"mode,omitempty"`    // url: glob | prefix | regex | exact
	Op      string   `json:"op,omitempty"`      // equals | contains | regex
	Key     string   `json:"key,omitempty"`     // header/query/cookie name (lowercase)
	Path    string   `json:"path,omitempty"`    // gjson path for type "json"
	Pattern string   `json:"pattern,omitempty"` // url pattern
	Value   string   `json:"value,omitempty"`
	Values  []string `json:"values,omitempty"` // method list
}

// Match 匹配规格：AllOf 全部满足、AnyOf 任一满足、NoneOf 全部不满足
type Match struct {
	AllOf  []Condition `json:"allOf,omitempty"`
	AnyOf  []Condition `json:"anyOf,omitempty"`
	NoneOf []Condition `json:"noneOf,omitempty"`
}

// Respond is the mock response template a handler materializes.
// Body holds the decoded (logical) bytes; the declared Content-Encoding
// header decides how they are encoded on the way out.
type Respond struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    []byte            `json:"body,omitempty"`
}

// HandlerDef 一条 mock 处理器定义
type HandlerDef struct {
	ID       HandlerID `json:"id"`
	Name     string    `json:"name"`
	Priority int       `json:"priority"`
	Mode     string    `json:"mode,omitempty"` // "" or "short_circuit"
	Match    Match     `json:"match"`
	Respond  Respond   `json:"respond"`
}

type Event struct {
	Type      string    `json:"type"`
	Session   SessionID `json:"session"`
	Handler   HandlerID `json:"handler,omitempty"`
	URL       string    `json:"url,omitempty"`
	Method    string    `json:"method,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

type EngineStats struct {
	Total     int64               `json:"total"`
	Matched   int64               `json:"matched"`
	ByHandler map[HandlerID]int64 `json:"byHandler"`
}
