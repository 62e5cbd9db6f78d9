package api

import (
	"context"

	"mockbody/internal/config"
	"mockbody/internal/logger"
	"mockbody/internal/service"
	"mockbody/pkg/model"
	"mockbody/pkg/traffic"
)

// Service 服务接口
type Service interface {
	// StartSession 启动新会话
	StartSession() (model.SessionID, error)

	// ResumeSession 恢复会话并加载持久化的处理器
	ResumeSession(id model.SessionID) error

	// StopSession 停止会话（保留持久化定义）
	StopSession(id model.SessionID) error

	// ListSessions 列出活动会话
	ListSessions() []model.SessionID

	// PutHandler 创建或更新处理器定义
	PutHandler(id model.SessionID, def model.HandlerDef) (model.HandlerID, error)

	// DeleteHandler 删除处理器
	DeleteHandler(id model.SessionID, h model.HandlerID) error

	// ListHandlers 列出处理器定义（按优先级降序）
	ListHandlers(id model.SessionID) ([]model.HandlerDef, error)

	// SetBody 替换处理器的解码响应体
	SetBody(id model.SessionID, h model.HandlerID, body []byte) error

	// GetBody 获取处理器当前的解码响应体
	GetBody(id model.SessionID, h model.HandlerID) ([]byte, error)

	// EncodedSize 获取当前已应用编码体的字节长度
	EncodedSize(id model.SessionID, h model.HandlerID) (int, error)

	// SetResponseHeader 设置响应头（Content-Encoding 变化会触发重编码）
	SetResponseHeader(id model.SessionID, h model.HandlerID, name, value string) error

	// DeleteResponseHeader 删除响应头
	DeleteResponseHeader(id model.SessionID, h model.HandlerID, name string) error

	// ApplyJSONPatch 修改响应体中指定 JSON 路径的值
	ApplyJSONPatch(id model.SessionID, h model.HandlerID, path string, value any) error

	// Resolve 解析请求并物化匹配处理器的响应
	Resolve(ctx context.Context, id model.SessionID, req *traffic.Request) (*model.ResolveResult, error)

	// GetStats 获取规则统计信息
	GetStats(id model.SessionID) (model.EngineStats, error)

	// SubscribeEvents 订阅会话事件
	SubscribeEvents(id model.SessionID) (<-chan model.Event, error)

	// Close 停止全部会话并关闭存储
	Close() error
}

// NewService 创建并返回服务接口实现
func NewService(cfg *config.Config, l logger.Logger) (Service, error) {
	return service.New(cfg, l)
}
