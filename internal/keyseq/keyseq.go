// Package keyseq parses AutoHotkey-style key sequences ("^c", "{Enter 2}",
// "Hello{Tab}World") into keystrokes named by X keysyms.
package keyseq

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSyntax is returned for sequences that cannot be turned into keystrokes.
var ErrSyntax = errors.New("invalid key sequence")

const (
	// MaxRepeat caps the count in "{Key N}".
	MaxRepeat = 1000
	// MaxStrokes caps the keystrokes one sequence may expand to.
	MaxStrokes = 100000
)

// Modifier is a bitmask of held modifier keys.
type Modifier uint8

const (
	ModShift Modifier = 1 << iota
	ModCtrl
	ModAlt
	ModSuper
)

// Action selects whether a stroke presses and releases a key, or only one
// half of that.
type Action int

const (
	Tap Action = iota
	Down
	Up
)

// Stroke is one key event. Key is an X keysym name ("a", "Return", "F5").
type Stroke struct {
	Key    string
	Mods   Modifier
	Action Action
}

var namedKeys = map[string]string{
	"enter":            "Return",
	"return":           "Return",
	"tab":              "Tab",
	"esc":              "Escape",
	"escape":           "Escape",
	"space":            "space",
	"bs":               "BackSpace",
	"backspace":        "BackSpace",
	"del":              "Delete",
	"delete":           "Delete",
	"ins":              "Insert",
	"insert":           "Insert",
	"up":               "Up",
	"down":             "Down",
	"left":             "Left",
	"right":            "Right",
	"home":             "Home",
	"end":              "End",
	"pgup":             "Prior",
	"pgdn":             "Next",
	"capslock":         "Caps_Lock",
	"numlock":          "Num_Lock",
	"scrolllock":       "Scroll_Lock",
	"printscreen":      "Print",
	"pause":            "Pause",
	"appskey":          "Menu",
	"lwin":             "Super_L",
	"rwin":             "Super_R",
	"ctrl":             "Control_L",
	"control":          "Control_L",
	"lctrl":            "Control_L",
	"rctrl":            "Control_R",
	"shift":            "Shift_L",
	"lshift":           "Shift_L",
	"rshift":           "Shift_R",
	"alt":              "Alt_L",
	"lalt":             "Alt_L",
	"ralt":             "Alt_R",
	"numpadenter":      "KP_Enter",
	"numpadadd":        "KP_Add",
	"numpadsub":        "KP_Subtract",
	"numpadmult":       "KP_Multiply",
	"numpaddiv":        "KP_Divide",
	"numpaddot":        "KP_Decimal",
	"volume_up":        "XF86AudioRaiseVolume",
	"volume_down":      "XF86AudioLowerVolume",
	"volume_mute":      "XF86AudioMute",
	"media_play_pause": "XF86AudioPlay",
	"media_next":       "XF86AudioNext",
	"media_prev":       "XF86AudioPrev",
	"media_stop":       "XF86AudioStop",
}

var modifierKeys = map[string]Modifier{
	"Control_L": ModCtrl,
	"Control_R": ModCtrl,
	"Shift_L":   ModShift,
	"Shift_R":   ModShift,
	"Alt_L":     ModAlt,
	"Alt_R":     ModAlt,
	"Super_L":   ModSuper,
	"Super_R":   ModSuper,
}

type charKey struct {
	key   string
	shift bool
}

// US layout. Characters outside this table and letters/digits are rejected.
var punctuation = map[rune]charKey{
	' ':  {"space", false},
	'\n': {"Return", false},
	'\t': {"Tab", false},
	'`':  {"grave", false},
	'~':  {"grave", true},
	'!':  {"1", true},
	'@':  {"2", true},
	'#':  {"3", true},
	'$':  {"4", true},
	'%':  {"5", true},
	'^':  {"6", true},
	'&':  {"7", true},
	'*':  {"8", true},
	'(':  {"9", true},
	')':  {"0", true},
	'-':  {"minus", false},
	'_':  {"minus", true},
	'=':  {"equal", false},
	'+':  {"equal", true},
	'[':  {"bracketleft", false},
	'{':  {"bracketleft", true},
	']':  {"bracketright", false},
	'}':  {"bracketright", true},
	'\\': {"backslash", false},
	'|':  {"backslash", true},
	';':  {"semicolon", false},
	':':  {"semicolon", true},
	'\'': {"apostrophe", false},
	'"':  {"apostrophe", true},
	',':  {"comma", false},
	'<':  {"comma", true},
	'.':  {"period", false},
	'>':  {"period", true},
	'/':  {"slash", false},
	'?':  {"slash", true},
}

// Parse converts seq into strokes. Modifier prefixes (^ + ! #) apply to the
// next key only; {Ctrl down} ... {Ctrl up} holds a modifier across keys.
func Parse(seq string) ([]Stroke, error) {
	var (
		out     []Stroke
		pending Modifier
		held    Modifier
	)
	runes := []rune(seq)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '^':
			pending |= ModCtrl
			continue
		case '+':
			pending |= ModShift
			continue
		case '!':
			pending |= ModAlt
			continue
		case '#':
			pending |= ModSuper
			continue
		case '\r':
			continue
		case '{':
			end := closingBrace(runes, i)
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated '{' at offset %d in key sequence", ErrSyntax, i)
			}
			strokes, err := parseBraced(string(runes[i+1:end]), pending|held, &held)
			if err != nil {
				return nil, err
			}
			if len(out)+len(strokes) > MaxStrokes {
				return nil, fmt.Errorf("%w: sequence expands to more than %d keystrokes", ErrSyntax, MaxStrokes)
			}
			out = append(out, strokes...)
			pending = 0
			i = end
			continue
		}

		ck, err := lookupChar(r)
		if err != nil {
			return nil, err
		}
		mods := pending | held
		if ck.shift {
			mods |= ModShift
		}
		if len(out) >= MaxStrokes {
			return nil, fmt.Errorf("%w: sequence expands to more than %d keystrokes", ErrSyntax, MaxStrokes)
		}
		out = append(out, Stroke{Key: ck.key, Mods: mods})
		pending = 0
	}
	if pending != 0 {
		return nil, fmt.Errorf("%w: key sequence ends with a dangling modifier", ErrSyntax)
	}
	return out, nil
}

// closingBrace finds the '}' closing the brace opened at start. "{}}" and
// "{{}" name the brace characters themselves.
func closingBrace(runes []rune, start int) int {
	if start+2 < len(runes) && runes[start+2] == '}' {
		return start + 2
	}
	for j := start + 1; j < len(runes); j++ {
		if runes[j] == '}' {
			return j
		}
	}
	return -1
}

func parseBraced(body string, mods Modifier, held *Modifier) ([]Stroke, error) {
	name, arg, _ := strings.Cut(body, " ")
	if name == "" {
		return nil, fmt.Errorf("%w: empty key name in braces", ErrSyntax)
	}

	key, shift, err := resolveKey(name)
	if err != nil {
		return nil, err
	}
	if shift {
		mods |= ModShift
	}

	arg = strings.ToLower(strings.TrimSpace(arg))
	switch arg {
	case "":
		return []Stroke{{Key: key, Mods: mods}}, nil
	case "down":
		*held |= modifierKeys[key]
		return []Stroke{{Key: key, Mods: mods, Action: Down}}, nil
	case "up":
		*held &^= modifierKeys[key]
		return []Stroke{{Key: key, Mods: mods, Action: Up}}, nil
	}

	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 {
		return nil, fmt.Errorf("%w: bad repeat count %q for key %q", ErrSyntax, arg, name)
	}
	if n > MaxRepeat {
		return nil, fmt.Errorf("%w: repeat count %d for key %q exceeds %d", ErrSyntax, n, name, MaxRepeat)
	}
	out := make([]Stroke, 0, n)
	for range n {
		out = append(out, Stroke{Key: key, Mods: mods})
	}
	return out, nil
}

func resolveKey(name string) (string, bool, error) {
	if runes := []rune(name); len(runes) == 1 {
		ck, err := lookupChar(runes[0])
		if err != nil {
			return "", false, err
		}
		return ck.key, ck.shift, nil
	}
	lower := strings.ToLower(name)
	if key, ok := namedKeys[lower]; ok {
		return key, false, nil
	}
	if n, ok := numbered(lower, "f"); ok && n >= 1 && n <= 24 {
		return "F" + strconv.Itoa(n), false, nil
	}
	if n, ok := numbered(lower, "numpad"); ok && n >= 0 && n <= 9 {
		return "KP_" + strconv.Itoa(n), false, nil
	}
	return "", false, fmt.Errorf("%w: unknown key name %q", ErrSyntax, name)
}

func numbered(s, prefix string) (int, bool) {
	if !strings.HasPrefix(s, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(s[len(prefix):])
	return n, err == nil
}

func lookupChar(r rune) (charKey, error) {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return charKey{key: string(r)}, nil
	case r >= 'A' && r <= 'Z':
		return charKey{key: string(r + ('a' - 'A')), shift: true}, nil
	}
	if ck, ok := punctuation[r]; ok {
		return ck, nil
	}
	return charKey{}, fmt.Errorf("%w: character %q has no key on the US layout", ErrSyntax, r)
}
