package logger

import "testing"

func TestDefaultLoggerIsUsable(t *testing.T) {
	if Log == nil {
		t.Fatal("Log should be initialized to a no-op logger")
	}
	Log.Infof("no-op %d", 1)
}

func TestInit(t *testing.T) {
	old := Log
	defer func() { Log = old }()

	if err := Init("debug", true); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if Log == old {
		t.Error("Init should replace the logger")
	}
}

func TestInit_BadLevel(t *testing.T) {
	old := Log
	defer func() { Log = old }()

	if err := Init("loud", false); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
	if Log != old {
		t.Error("logger should be unchanged after a failed Init")
	}
}
