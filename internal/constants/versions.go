package constants

// Version information (injected at build time)
var (
	// Version 应用版本号（通过 -ldflags 注入）
	Version = "dev"

	// BuildTime 构建时间（通过 -ldflags 注入）
	BuildTime = "unknown"

	// GitCommit Git 提交哈希（通过 -ldflags 注入）
	GitCommit = "unknown"
)

// ServiceName identifies the console in traces, logs and the User-Agent header.
const ServiceName = "kiro-console"

// GetFullVersion 获取完整版本信息
func GetFullVersion() string {
	return Version + " (" + GitCommit + ") built at " + BuildTime
}

// UserAgent is sent on every call to the provider-pool API.
func UserAgent() string {
	return ServiceName + "/" + Version
}
