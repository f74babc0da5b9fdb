package utils

import "testing"

var intFromStringTests = []struct {
	input        string
	defaultValue int
	expected     int
}{
	{"42", 0, 42},
	{"", 7, 7},
	{"not-a-number", 7, 7},
	{"-3", 0, -3},
}

func TestIntFromString(t *testing.T) {
	for _, tt := range intFromStringTests {
		t.Run(tt.input, func(t *testing.T) {
			if got := IntFromString(tt.input, tt.defaultValue); got != tt.expected {
				t.Errorf("got %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestFloatFromString(t *testing.T) {
	if got := FloatFromString("0.7", 0); got != 0.7 {
		t.Errorf("got %f, want 0.7", got)
	}
	if got := FloatFromString("", 0.5); got != 0.5 {
		t.Errorf("got %f, want default 0.5", got)
	}
}

func TestBoolFromString(t *testing.T) {
	if !BoolFromString("1", false) {
		t.Errorf(`"1" should parse as true`)
	}
	if BoolFromString("junk", false) {
		t.Errorf("unparsable input should fall back to default")
	}
}
