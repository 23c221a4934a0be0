//go:build windows

package hotkeys

import (
	"fmt"

	"localshortcut/internal/accelerator"
)

const (
	modAlt      uint32 = 0x0001
	modControl  uint32 = 0x0002
	modShift    uint32 = 0x0004
	modWin      uint32 = 0x0008
	modNoRepeat uint32 = 0x4000
)

const vkF1 uint32 = 0x70

var vkByKey = map[string]uint32{
	"Backspace":          0x08,
	"Tab":                0x09,
	"Enter":              0x0D,
	"Capslock":           0x14,
	"Esc":                0x1B,
	"Space":              0x20,
	"PageUp":             0x21,
	"PageDown":           0x22,
	"End":                0x23,
	"Home":               0x24,
	"Left":               0x25,
	"Up":                 0x26,
	"Right":              0x27,
	"Down":               0x28,
	"PrintScreen":        0x2C,
	"Insert":             0x2D,
	"Delete":             0x2E,
	"Numlock":            0x90,
	"Scrolllock":         0x91,
	"VolumeMute":         0xAD,
	"VolumeDown":         0xAE,
	"VolumeUp":           0xAF,
	"MediaNextTrack":     0xB0,
	"MediaPreviousTrack": 0xB1,
	"MediaStop":          0xB2,
	"MediaPlayPause":     0xB3,
	"Plus":               0xBB,
	";":                  0xBA,
	"=":                  0xBB,
	",":                  0xBC,
	"-":                  0xBD,
	".":                  0xBE,
	"/":                  0xBF,
	"`":                  0xC0,
	"[":                  0xDB,
	"\\":                 0xDC,
	"]":                  0xDD,
	"'":                  0xDE,
}

// win32Binding converts a parsed accelerator into RegisterHotKey arguments.
// CmdOrCtrl and Command map to Control; Super maps to the Windows key.
func win32Binding(acc accelerator.Accelerator) (uint32, uint32, error) {
	var mods uint32
	m := acc.Modifiers()
	if m&(accelerator.ModControl|accelerator.ModCommand|accelerator.ModCommandOrControl) != 0 {
		mods |= modControl
	}
	if m&(accelerator.ModAlt|accelerator.ModAltGr) != 0 {
		mods |= modAlt
	}
	if m&accelerator.ModAltGr != 0 {
		mods |= modControl
	}
	if m&accelerator.ModShift != 0 {
		mods |= modShift
	}
	if m&accelerator.ModSuper != 0 {
		mods |= modWin
	}

	key := acc.Key()
	if vk, ok := vkByKey[key]; ok {
		return mods | modNoRepeat, vk, nil
	}
	if len(key) == 1 {
		ch := key[0]
		if (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') {
			return mods | modNoRepeat, uint32(ch), nil
		}
	}
	if len(key) >= 2 && key[0] == 'F' {
		var n uint32
		if _, err := fmt.Sscanf(key[1:], "%d", &n); err == nil && n >= 1 && n <= 24 {
			return mods | modNoRepeat, vkF1 + n - 1, nil
		}
	}
	return 0, 0, fmt.Errorf("key %q has no virtual-key mapping", key)
}
