package constants

import "time"

// 重试策略常量
const (
	// 上游请求重试配置（仅用于幂等的 GET）
	UpstreamMaxRetries    = 3
	UpstreamRetryDelay    = 500 * time.Millisecond
	UpstreamMaxRetryDelay = 5 * time.Second
)

// 错误处理配置
const (
	MaxErrorMessageLength = 200
)
