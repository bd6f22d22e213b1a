package model

import (
	"testing"

	"github.com/mj1618/hidbridge/internal/hid"
)

func TestUsageName(t *testing.T) {
	tests := []struct {
		page, usage uint32
		want        string
	}{
		{hid.PageGenericDesktop, hid.UsageGDMouse, "mouse"},
		{hid.PageGenericDesktop, hid.UsageGDKeyboard, "keyboard"},
		{hid.PageGenericDesktop, 0x30, "x"},
		{hid.PageButton, 3, "button-3"},
		{hid.PageLEDs, 0x02, "caps-lock"},
		{hid.PageKeyboardOrKeypad, 0xe1, "left-shift"},
		{0xff00, 0x01, "vendor"},
		{0xffab, 0x20, "vendor"},
		{hid.PageConsumer, 0, "consumer"},
		{0x20, 0x05, ""},
	}
	for _, tt := range tests {
		if got := UsageName(tt.page, tt.usage); got != tt.want {
			t.Errorf("UsageName(%#x, %#x) = %q, want %q", tt.page, tt.usage, got, tt.want)
		}
	}
}
