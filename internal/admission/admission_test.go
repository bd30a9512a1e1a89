package admission

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	cpu, mem float64
}

func (f fakeReader) cpuPercent() (float64, error) { return f.cpu, nil }
func (f fakeReader) memPercent() (float64, error) { return f.mem, nil }

func TestAdmitAllowsWhenDisabled(t *testing.T) {
	g := New(0, 0)
	g.reader = fakeReader{cpu: 99, mem: 99}
	ok, _ := g.Admit()
	require.True(t, ok)
}

func TestAdmitRejectsOnHighCPU(t *testing.T) {
	g := New(80, 0)
	g.reader = fakeReader{cpu: 95}
	ok, reason := g.Admit()
	require.False(t, ok)
	require.Contains(t, reason, "cpu")
}

func TestAdmitRejectsOnHighMemory(t *testing.T) {
	g := New(0, 80)
	g.reader = fakeReader{mem: 90}
	ok, reason := g.Admit()
	require.False(t, ok)
	require.Contains(t, reason, "memory")
}

func TestAdmitAllowsBelowThresholds(t *testing.T) {
	g := New(80, 80)
	g.reader = fakeReader{cpu: 10, mem: 10}
	ok, _ := g.Admit()
	require.True(t, ok)
}
