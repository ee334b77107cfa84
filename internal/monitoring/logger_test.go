package monitoring

import (
	"strings"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// nil installs a no-op which must not reach the previous logger
	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
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

func TestCapture(t *testing.T) {
	lines, restore := Capture()
	Logf("[sweep] done %d/%d", 1, 4)
	Logf("[sweep] done %d/%d", 2, 4)
	restore()
	Logf("after restore")

	if len(*lines) != 2 {
		t.Fatalf("captured %d lines, want 2", len(*lines))
	}
	if !strings.Contains((*lines)[1], "2/4") {
		t.Errorf("second line = %q, want it to contain 2/4", (*lines)[1])
	}
}
