package platform

import "testing"

func TestParseBackend_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  Backend
	}{
		{"", BackendAuto},
		{"auto", BackendAuto},
		{"Native", BackendNative},
		{" SIM ", BackendSim},
	}
	for _, tt := range tests {
		got, err := ParseBackend(tt.input)
		if err != nil {
			t.Errorf("ParseBackend(%q): %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("ParseBackend(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestParseBackend_Invalid(t *testing.T) {
	if _, err := ParseBackend("hidapi"); err == nil {
		t.Error("ParseBackend(\"hidapi\") should fail")
	}
}

func TestAccess_String(t *testing.T) {
	tests := map[Access]string{
		AccessUnknown: "unknown",
		AccessGranted: "granted",
		AccessDenied:  "denied",
		Access(9):     "access(9)",
	}
	for a, want := range tests {
		if got := a.String(); got != want {
			t.Errorf("Access(%d).String() = %q, want %q", int(a), got, want)
		}
	}
}
