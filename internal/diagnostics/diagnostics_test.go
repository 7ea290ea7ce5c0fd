package diagnostics

import (
	"context"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectFillsRuntimeFields(t *testing.T) {
	t.Parallel()

	s := Collect(context.Background())
	assert.False(t, s.Timestamp.IsZero())
	assert.Positive(t, s.Goroutines)
	assert.Positive(t, s.HeapAllocBytes)
	assert.NotEmpty(t, s.Fields())
}

func TestSaturated(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		snap HostSnapshot
		want bool
	}{
		{"idle host", HostSnapshot{CPUPercent: 12, MemoryPercent: 40}, false},
		{"cpu bound", HostSnapshot{CPUPercent: 97}, true},
		{"memory bound", HostSnapshot{MemoryPercent: 99}, true},
		{"overloaded run queue", HostSnapshot{Load1: float64(runtime.NumCPU()) + 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.snap.Saturated())
		})
	}
}

func TestFieldsListMissing(t *testing.T) {
	t.Parallel()

	withMissing := HostSnapshot{Missing: []string{"load"}}.Fields()
	assert.Len(t, withMissing, len(HostSnapshot{}.Fields())+1)
}

func TestDescribeSystem(t *testing.T) {
	t.Parallel()

	info := DescribeSystem(context.Background())
	assert.NotEmpty(t, info.OS)
	assert.NotEmpty(t, info.Arch)
	assert.NotEmpty(t, info.CPUBrand)
	assert.Positive(t, info.LogicalCores)
	assert.Len(t, info.Fields(), 8)
}
