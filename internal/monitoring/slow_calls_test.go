package monitoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlowCallLogKeepsOnlySlowCalls(t *testing.T) {
	l := NewSlowCallLog(100*time.Millisecond, 2)

	assert.False(t, l.Observe(SlowCall{Operation: "list", Duration: 10 * time.Millisecond}))
	assert.True(t, l.Observe(SlowCall{Operation: "a", Duration: 100 * time.Millisecond}))
	assert.True(t, l.Observe(SlowCall{Operation: "b", Duration: time.Second}))
	assert.True(t, l.Observe(SlowCall{Operation: "c", Duration: time.Second}))

	all := l.Recent(0)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].Operation)
	assert.Equal(t, "c", all[1].Operation)

	last := l.Recent(1)
	require.Len(t, last, 1)
	assert.Equal(t, "c", last[0].Operation)

	l.Clear()
	assert.Empty(t, l.Recent(0))
}

func TestSlowCallLogThreshold(t *testing.T) {
	l := NewSlowCallLog(0, 0)
	assert.Equal(t, SlowCallThreshold, l.Threshold())
	l.SetThreshold(-1)
	assert.Equal(t, SlowCallThreshold, l.Threshold())
	l.SetThreshold(time.Millisecond)
	assert.Equal(t, time.Millisecond, l.Threshold())
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{0: "error", 200: "2xx", 204: "2xx", 302: "3xx", 404: "4xx", 409: "4xx", 502: "5xx"}
	for code, want := range tests {
		assert.Equal(t, want, StatusClass(code), "code %d", code)
	}
}
