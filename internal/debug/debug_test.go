package debug

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })
	return &buf
}

func TestDisabledOutputIsSilent(t *testing.T) {
	buf := capture(t)

	DebugHeader(false)
	DebugOutput(false, "hidden %d", 1)
	DebugStage(false, "trim", "a ", "a")
	DebugTiming(false, "op")()
	DebugFooter(false)

	assert.Empty(t, buf.String())
}

func TestDebugOutputWhenEnabled(t *testing.T) {
	buf := capture(t)

	DebugHeader(true)
	DebugOutput(true, "processed %d rows", 3)
	DebugFooter(true)

	out := buf.String()
	assert.Contains(t, out, "DEBUG START")
	assert.Contains(t, out, "processed 3 rows")
	assert.Contains(t, out, "DEBUG END")
}

func TestDebugStageSkipsUnchanged(t *testing.T) {
	buf := capture(t)

	DebugStage(true, "floor-marker", "3樓", "3樓")
	assert.Empty(t, buf.String())

	DebugStage(true, "floor-marker", "3F", "3樓")
	assert.Contains(t, buf.String(), "floor-marker")
	assert.Contains(t, buf.String(), `"3F" -> "3樓"`)
}

func TestWarnAlwaysPrints(t *testing.T) {
	buf := capture(t)

	Warn("no postal code for %q", "somewhere")
	assert.Contains(t, buf.String(), `[WARN] no postal code for "somewhere"`)
}

func TestDebugTiming(t *testing.T) {
	buf := capture(t)

	done := DebugTiming(true, "load index")
	done()

	assert.Contains(t, buf.String(), "Starting: load index")
	assert.Contains(t, buf.String(), "Completed: load index")
}
