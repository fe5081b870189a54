package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"", false, false},
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{" on ", false, true},
		{"sí", false, true},
		{"false", true, false},
		{"0", true, false},
		{"no", true, false},
		{"Off", true, false},
		{"maybe", true, true},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		t.Setenv("SHOPCHAT_TEST_BOOL", tt.value)
		if got := ParseBoolEnv("SHOPCHAT_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestGetenv(t *testing.T) {
	t.Setenv("SHOPCHAT_TEST_VALUE", "  ")
	if got := Getenv("SHOPCHAT_TEST_VALUE", "def"); got != "def" {
		t.Errorf("blank value should fall back, got %q", got)
	}
	t.Setenv("SHOPCHAT_TEST_VALUE", " v18.0 ")
	if got := Getenv("SHOPCHAT_TEST_VALUE", "def"); got != "v18.0" {
		t.Errorf("Getenv = %q, want trimmed value", got)
	}
}
