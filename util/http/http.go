package http

import (
	"context"
	"time"
)

// IClient 发送一次 HTTP 请求
type IClient interface {
	DoHTTPRequest(ctx context.Context, requestParam *RequestParam) error
}

// RequestParam 一次请求的参数
// Body 支持 nil、io.Reader、[]byte，其它类型按 JSON 序列化
// Response 非空时把响应体按 JSON 反序列化进去
type RequestParam struct {
	RequestURI string
	Method     string
	Header     map[string]string
	Body       interface{}
	Response   interface{}

	Timeout time.Duration
}
