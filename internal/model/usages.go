package model

import (
	"strconv"

	"github.com/mj1618/hidbridge/internal/hid"
)

type usage struct {
	page, id uint32
}

// UsageMap names the usage page/usage pairs the CLI prints.
var UsageMap = map[usage]string{
	{hid.PageGenericDesktop, hid.UsageGDPointer}:  "pointer",
	{hid.PageGenericDesktop, hid.UsageGDMouse}:    "mouse",
	{hid.PageGenericDesktop, hid.UsageGDJoystick}: "joystick",
	{hid.PageGenericDesktop, hid.UsageGDGamePad}:  "gamepad",
	{hid.PageGenericDesktop, hid.UsageGDKeyboard}: "keyboard",
	{hid.PageGenericDesktop, hid.UsageGDKeypad}:   "keypad",
	{hid.PageGenericDesktop, 0x30}:                "x",
	{hid.PageGenericDesktop, 0x31}:                "y",
	{hid.PageGenericDesktop, 0x32}:                "z",
	{hid.PageGenericDesktop, 0x38}:                "wheel",
	{hid.PageConsumer, 0x01}:                      "consumer-control",
	{hid.PageLEDs, 0x01}:                          "num-lock",
	{hid.PageLEDs, 0x02}:                          "caps-lock",
	{hid.PageLEDs, 0x03}:                          "scroll-lock",
	{hid.PageKeyboardOrKeypad, 0xe0}:              "left-control",
	{hid.PageKeyboardOrKeypad, 0xe1}:              "left-shift",
	{hid.PageKeyboardOrKeypad, 0xe2}:              "left-alt",
	{hid.PageKeyboardOrKeypad, 0xe3}:              "left-gui",
	{hid.PageKeyboardOrKeypad, 0xe4}:              "right-control",
	{hid.PageKeyboardOrKeypad, 0xe5}:              "right-shift",
	{hid.PageKeyboardOrKeypad, 0xe6}:              "right-alt",
	{hid.PageKeyboardOrKeypad, 0xe7}:              "right-gui",
}

// PageMap names usage pages for usages missing from UsageMap.
var PageMap = map[uint32]string{
	hid.PageGenericDesktop:   "generic-desktop",
	hid.PageKeyboardOrKeypad: "keyboard",
	hid.PageLEDs:             "led",
	hid.PageButton:           "button",
	hid.PageConsumer:         "consumer",
	hid.PageVendorDefined:    "vendor",
}

// UsageName returns a short name for the pair: "mouse", "button-3",
// "vendor" or "" when unknown.
func UsageName(page, id uint32) string {
	if name, ok := UsageMap[usage{page, id}]; ok {
		return name
	}
	if page == hid.PageButton && id > 0 {
		return "button-" + strconv.FormatUint(uint64(id), 10)
	}
	if page >= hid.PageVendorDefined {
		return "vendor"
	}
	if name, ok := PageMap[page]; ok && id == 0 {
		return name
	}
	return ""
}
