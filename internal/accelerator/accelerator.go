// Package accelerator validates and normalizes accelerator strings such as
// "CmdOrCtrl+Shift+K". It does not bind anything; binding lives in hotkeys.
package accelerator

import (
	"fmt"
	"strings"
)

// Modifier is a bitmask of modifier keys.
type Modifier uint16

const (
	ModCommand Modifier = 1 << iota
	ModControl
	ModCommandOrControl
	ModAlt
	ModAltGr
	ModShift
	ModSuper
)

// modifierOrder is the canonical order used by Normalize.
var modifierOrder = []Modifier{
	ModCommandOrControl,
	ModCommand,
	ModControl,
	ModAlt,
	ModAltGr,
	ModShift,
	ModSuper,
}

var modifierByName = map[string]Modifier{
	"COMMAND":          ModCommand,
	"CMD":              ModCommand,
	"CONTROL":          ModControl,
	"CTRL":             ModControl,
	"COMMANDORCONTROL": ModCommandOrControl,
	"CMDORCTRL":        ModCommandOrControl,
	"ALT":              ModAlt,
	"OPTION":           ModAlt,
	"ALTGR":            ModAltGr,
	"SHIFT":            ModShift,
	"SUPER":            ModSuper,
	"META":             ModSuper,
}

var modifierName = map[Modifier]string{
	ModCommand:          "Command",
	ModControl:          "Ctrl",
	ModCommandOrControl: "CmdOrCtrl",
	ModAlt:              "Alt",
	ModAltGr:            "AltGr",
	ModShift:            "Shift",
	ModSuper:            "Super",
}

// namedKeys maps upper-cased aliases to their canonical spelling.
var namedKeys = map[string]string{
	"PLUS":               "Plus",
	"SPACE":              "Space",
	"TAB":                "Tab",
	"CAPSLOCK":           "Capslock",
	"NUMLOCK":            "Numlock",
	"SCROLLLOCK":         "Scrolllock",
	"BACKSPACE":          "Backspace",
	"DELETE":             "Delete",
	"INSERT":             "Insert",
	"RETURN":             "Enter",
	"ENTER":              "Enter",
	"UP":                 "Up",
	"DOWN":               "Down",
	"LEFT":               "Left",
	"RIGHT":              "Right",
	"HOME":               "Home",
	"END":                "End",
	"PAGEUP":             "PageUp",
	"PAGEDOWN":           "PageDown",
	"ESCAPE":             "Esc",
	"ESC":                "Esc",
	"VOLUMEUP":           "VolumeUp",
	"VOLUMEDOWN":         "VolumeDown",
	"VOLUMEMUTE":         "VolumeMute",
	"MEDIANEXTTRACK":     "MediaNextTrack",
	"MEDIAPREVIOUSTRACK": "MediaPreviousTrack",
	"MEDIASTOP":          "MediaStop",
	"MEDIAPLAYPAUSE":     "MediaPlayPause",
	"PRINTSCREEN":        "PrintScreen",
}

// punctuation keys accepted as single-character key tokens.
const punctuation = ")!@#$%^&*(:<_>?~{|}\";=,-./`[\\]'"

const maxFunctionKey = 24

// Accelerator is a parsed key combination.
// Construct only via Parse to guarantee invariant consistency.
type Accelerator struct {
	modifiers  Modifier
	key        string
	normalized string
}

// Modifiers returns the modifier bitmask.
func (a Accelerator) Modifiers() Modifier { return a.modifiers }

// Key returns the canonical key token.
func (a Accelerator) Key() string { return a.key }

// String returns the canonical accelerator string.
func (a Accelerator) String() string { return a.normalized }

// Parse parses an accelerator like "Ctrl+Shift+F12". Exactly one key token is
// required and it must come last; modifiers may repeat and appear in any order.
func Parse(spec string) (Accelerator, error) {
	raw := strings.TrimSpace(spec)
	if raw == "" {
		return Accelerator{}, fmt.Errorf("accelerator is empty")
	}

	parts := splitTokens(raw)
	var modifiers Modifier
	key := ""
	for i, token := range parts {
		name := strings.TrimSpace(token)
		if name == "" {
			return Accelerator{}, fmt.Errorf("empty token in accelerator %q", raw)
		}
		if mod, ok := modifierByName[strings.ToUpper(name)]; ok {
			if key != "" {
				return Accelerator{}, fmt.Errorf("modifier %q after key in accelerator %q", name, raw)
			}
			modifiers |= mod
			continue
		}
		canonical, ok := parseKey(name)
		if !ok {
			return Accelerator{}, fmt.Errorf("unknown key %q in accelerator %q", name, raw)
		}
		if key != "" {
			return Accelerator{}, fmt.Errorf("accelerator %q has more than one key (%q, %q)", raw, key, canonical)
		}
		if i != len(parts)-1 {
			return Accelerator{}, fmt.Errorf("key %q must be the last token in accelerator %q", name, raw)
		}
		key = canonical
	}
	if key == "" {
		return Accelerator{}, fmt.Errorf("accelerator %q has no key", raw)
	}

	return build(modifiers, key), nil
}

func build(modifiers Modifier, key string) Accelerator {
	tokens := make([]string, 0, len(modifierOrder)+1)
	for _, mod := range modifierOrder {
		if modifiers&mod != 0 {
			tokens = append(tokens, modifierName[mod])
		}
	}
	tokens = append(tokens, key)
	return Accelerator{
		modifiers:  modifiers,
		key:        key,
		normalized: strings.Join(tokens, "+"),
	}
}

// Replace returns a with the modifiers in from swapped for to. ok is false
// when a holds none of from.
func (a Accelerator) Replace(from, to Modifier) (out Accelerator, ok bool) {
	if a.modifiers&from == 0 {
		return a, false
	}
	return build(a.modifiers&^from|to, a.key), true
}

// IsValid reports whether spec parses as an accelerator.
func IsValid(spec string) bool {
	_, err := Parse(spec)
	return err == nil
}

// Normalize returns the canonical form of spec, or the trimmed input when it
// does not parse. Matching layers key on this value so "shift+ctrl+a" and
// "Ctrl+Shift+A" address the same binding.
func Normalize(spec string) string {
	acc, err := Parse(spec)
	if err != nil {
		return strings.TrimSpace(spec)
	}
	return acc.String()
}

// splitTokens splits on "+" while keeping a literal trailing "+" key
// ("Ctrl++" is Ctrl and the plus key).
func splitTokens(raw string) []string {
	if strings.HasSuffix(raw, "++") {
		head := strings.Split(strings.TrimSuffix(raw, "++"), "+")
		return append(head, "Plus")
	}
	if raw == "+" {
		return []string{"Plus"}
	}
	return strings.Split(raw, "+")
}

func parseKey(token string) (string, bool) {
	upper := strings.ToUpper(token)
	if canonical, ok := namedKeys[upper]; ok {
		return canonical, true
	}
	if len(upper) == 1 {
		ch := upper[0]
		switch {
		case ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
			return upper, true
		case strings.IndexByte(punctuation, ch) >= 0:
			return upper, true
		}
		return "", false
	}
	if upper[0] == 'F' {
		n := 0
		for _, r := range upper[1:] {
			if r < '0' || r > '9' {
				return "", false
			}
			n = n*10 + int(r-'0')
			if n > maxFunctionKey {
				return "", false
			}
		}
		if n >= 1 && upper[1] != '0' {
			return upper, true
		}
	}
	return "", false
}
