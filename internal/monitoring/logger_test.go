package monitoring

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	assert.True(t, called, "custom logger was not called")

	// nil installs a no-op that must not call the previous logger
	called = false
	SetLogger(nil)
	Logf("test")
	assert.False(t, called)
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Fatal("Logf should not be nil by default")
	}
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()
	Logf("test message: %s", "value")
}

func TestInit(t *testing.T) {
	origLogf, origDebugf := Logf, Debugf
	defer func() { Logf, Debugf = origLogf, origDebugf }()

	var buf bytes.Buffer
	Init("mutools", Options{Out: &buf})
	Logf("reading dump %d", 42)
	Debugf("hidden")
	out := buf.String()
	assert.Contains(t, out, "reading dump 42")
	assert.Contains(t, out, "mutools")
	assert.NotContains(t, out, "hidden")

	buf.Reset()
	Init("mutools", Options{Out: &buf, Debug: true})
	Debugf("visible %s", "now")
	assert.Contains(t, buf.String(), "visible now")

	buf.Reset()
	Init("mutools", Options{Out: &buf, Quiet: true})
	Logf("silent")
	assert.Empty(t, buf.String())
}
