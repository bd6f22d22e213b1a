package hid

import "testing"

func TestParseMatching(t *testing.T) {
	m, err := ParseMatching([]string{"VendorID=0x05ac", "Product=Magic Keyboard", "Built-In=true", " ProductID = 610 "})
	if err != nil {
		t.Fatal(err)
	}
	if m[KeyVendorID] != int64(0x05ac) {
		t.Errorf("VendorID = %#v", m[KeyVendorID])
	}
	if m[KeyProduct] != "Magic Keyboard" {
		t.Errorf("Product = %#v", m[KeyProduct])
	}
	if m[KeyBuiltIn] != true {
		t.Errorf("Built-In = %#v", m[KeyBuiltIn])
	}
	if m[KeyProductID] != int64(610) {
		t.Errorf("ProductID = %#v", m[KeyProductID])
	}

	for _, bad := range []string{"novalue", "=1"} {
		if _, err := ParseMatching([]string{bad}); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestEqualValues(t *testing.T) {
	tests := []struct {
		a, b any
		want bool
	}{
		{int64(5), uint32(5), true},
		{5, float64(5), true},
		{uint16(5), int8(6), false},
		{"a", "a", true},
		{"5", 5, false},
		{[]byte{1, 2}, []byte{1, 2}, true},
		{[]byte{1}, []byte{2}, false},
		{true, true, true},
		{float64(1.5), int64(1), false},
	}
	for _, tt := range tests {
		if got := EqualValues(tt.a, tt.b); got != tt.want {
			t.Errorf("EqualValues(%#v, %#v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestMatchAny(t *testing.T) {
	props := map[PropertyKey]any{KeyVendorID: int64(0x05ac), KeyProductID: int64(0x024f)}
	prop := func(k PropertyKey) (any, bool) { v, ok := props[k]; return v, ok }

	if !MatchAny(nil, prop) {
		t.Error("empty matching list should match")
	}
	if !MatchAny([]Matching{{KeyVendorID: 0x1234}, {KeyVendorID: 0x05ac}}, prop) {
		t.Error("expected second dictionary to match")
	}
	if MatchAny([]Matching{{KeyVendorID: 0x05ac, KeyProduct: "x"}}, prop) {
		t.Error("missing key must not match")
	}
}

func TestMatchesElement(t *testing.T) {
	e := Element{Cookie: 7, Type: ElementTypeInputButton, UsagePage: PageButton, Usage: 3}
	if !(ElementMatching{ElementKeyUsagePage: PageButton, ElementKeyType: 2}).MatchesElement(e) {
		t.Error("expected match")
	}
	if (ElementMatching{"Unknown": 1}).MatchesElement(e) {
		t.Error("unknown key must not match")
	}
	if !MatchAnyElement(nil, e) {
		t.Error("empty list should match")
	}
}
