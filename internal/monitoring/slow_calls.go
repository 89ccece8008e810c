package monitoring

import (
	"sync"
	"time"
)

// SlowCallThreshold 慢调用阈值
const SlowCallThreshold = 2 * time.Second

// SlowCall records one provider-pool call that exceeded the threshold.
type SlowCall struct {
	Timestamp  time.Time     `json:"timestamp"`
	Operation  string        `json:"operation"`
	Duration   time.Duration `json:"duration"`
	StatusCode int           `json:"status_code,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// SlowCallLog keeps the most recent slow calls in a bounded ring.
type SlowCallLog struct {
	mu        sync.RWMutex
	threshold time.Duration
	calls     []SlowCall
	maxSize   int
}

// NewSlowCallLog 创建慢调用记录器
func NewSlowCallLog(threshold time.Duration, maxSize int) *SlowCallLog {
	if threshold <= 0 {
		threshold = SlowCallThreshold
	}
	if maxSize <= 0 {
		maxSize = 200
	}
	return &SlowCallLog{
		threshold: threshold,
		calls:     make([]SlowCall, 0, maxSize),
		maxSize:   maxSize,
	}
}

// Threshold returns the current threshold.
func (l *SlowCallLog) Threshold() time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.threshold
}

// SetThreshold 设置慢调用阈值
func (l *SlowCallLog) SetThreshold(threshold time.Duration) {
	if threshold <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.threshold = threshold
}

// Observe records call if it ran at least as long as the threshold.
func (l *SlowCallLog) Observe(call SlowCall) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if call.Duration < l.threshold {
		return false
	}
	// 超过最大大小时移除最旧的记录
	if len(l.calls) >= l.maxSize {
		l.calls = l.calls[1:]
	}
	l.calls = append(l.calls, call)
	return true
}

// Recent returns up to n of the newest records, oldest first. n <= 0 returns all.
func (l *SlowCallLog) Recent(n int) []SlowCall {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > len(l.calls) {
		n = len(l.calls)
	}
	out := make([]SlowCall, n)
	copy(out, l.calls[len(l.calls)-n:])
	return out
}

// Clear 清空记录
func (l *SlowCallLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = make([]SlowCall, 0, l.maxSize)
}
