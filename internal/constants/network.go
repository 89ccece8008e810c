package constants

import "time"

// HTTP Client 连接池配置
const (
	BaseMaxIdleConns        = 64
	BaseMaxIdleConnsPerHost = 16
	BaseIdleConnTimeout     = 90 * time.Second

	// Keep-Alive 设置
	DefaultKeepAlive = 30 * time.Second
)

// HTTP 超时配置
const (
	DefaultDialTimeout           = 10 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 60 * time.Second
	DefaultExpectContinueTimeout = 2 * time.Second
)

// TransportConfig 定义传输层配置选项
type TransportConfig struct {
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
	DialTimeout         time.Duration
	KeepAlive           time.Duration
	TLSHandshakeTimeout time.Duration
	ResponseHeader      time.Duration
}

// GetBaseTransportConfig 返回基础传输配置
func GetBaseTransportConfig() TransportConfig {
	return TransportConfig{
		MaxIdleConns:        BaseMaxIdleConns,
		MaxIdleConnsPerHost: BaseMaxIdleConnsPerHost,
		IdleConnTimeout:     BaseIdleConnTimeout,
		DialTimeout:         DefaultDialTimeout,
		KeepAlive:           DefaultKeepAlive,
		TLSHandshakeTimeout: DefaultTLSHandshakeTimeout,
		ResponseHeader:      DefaultResponseHeaderTimeout,
	}
}
