package monitoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var lines []string
	SetLogger(func(format string, v ...any) {
		lines = append(lines, format)
	})
	Logf("hello")
	assert.Equal(t, []string{"hello"}, lines)

	// nil installs a no-op rather than leaving Logf nil.
	SetLogger(nil)
	assert.NotPanics(t, func() { Logf("dropped") })
	assert.Len(t, lines, 1)
}

func TestDebugf(t *testing.T) {
	original, originalDebug := Logf, Debug
	defer func() { Logf, Debug = original, originalDebug }()

	calls := 0
	SetLogger(func(string, ...any) { calls++ })

	Debug = false
	Debugf("suppressed")
	assert.Zero(t, calls)

	Debug = true
	Debugf("emitted")
	assert.Equal(t, 1, calls)
}
