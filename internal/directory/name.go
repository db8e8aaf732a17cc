package directory

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// NameComponent is one element of a File Entry's name array. Per spec §3 a
// component may be a text string or a byte string; most names are plain
// UTF-8 path segments, but the byte-string form exists for filenames that
// are not valid UTF-8 on POSIX systems.
type NameComponent struct {
	Text    string
	Bytes   []byte
	IsBytes bool
}

// TextComponent constructs a text name component.
func TextComponent(s string) NameComponent { return NameComponent{Text: s} }

// BytesComponent constructs a byte-string name component.
func BytesComponent(b []byte) NameComponent { return NameComponent{Bytes: b, IsBytes: true} }

// String returns the component rendered as text, decoding byte-string
// components as raw Latin-1-ish passthrough only for diagnostics; callers
// that need the exact bytes should check IsBytes and use Bytes directly.
func (n NameComponent) String() string {
	if n.IsBytes {
		return string(n.Bytes)
	}
	return n.Text
}

// IsDotOrDotDot reports whether this component is "." or ".." — the only
// path components a Zarc archive must never store (spec §3, §4.2, §7
// DirectoryError::InvalidPath).
func (n NameComponent) IsDotOrDotDot() bool {
	s := n.Text
	if n.IsBytes {
		s = string(n.Bytes)
	}
	return s == "." || s == ".."
}

func (n NameComponent) MarshalCBOR() ([]byte, error) {
	if n.IsBytes {
		return EncMode.Marshal(n.Bytes)
	}
	return EncMode.Marshal(n.Text)
}

func (n *NameComponent) UnmarshalCBOR(data []byte) error {
	var raw cbor.RawMessage = data
	// Try a text string first, then a byte string; CBOR major types make
	// this unambiguous without needing a lookahead.
	var s string
	if err := DecMode.Unmarshal(raw, &s); err == nil {
		*n = NameComponent{Text: s}
		return nil
	}
	var b []byte
	if err := DecMode.Unmarshal(raw, &b); err == nil {
		*n = NameComponent{Bytes: b, IsBytes: true}
		return nil
	}
	return fmt.Errorf("directory: name component is neither text nor byte string")
}

// Name is the array-of-components pathname used by File Entries.
type Name []NameComponent

// Path renders a Name as a "/"-joined diagnostic string. It is not a
// filesystem path and must never be parsed back into components (that would
// reopen exactly the "." / ".." confusion the array form avoids).
func (n Name) Path() string {
	s := ""
	for i, c := range n {
		if i > 0 {
			s += "/"
		}
		s += c.String()
	}
	return s
}

// Validate enforces the pathname rules of spec §4.2: no "." or ".."
// component, anywhere in the array.
func (n Name) Validate() error {
	for _, c := range n {
		if c.IsDotOrDotDot() {
			return &DirectoryError{Op: "Validate", Err: fmt.Errorf("invalid path component %q in %q", c.String(), n.Path())}
		}
	}
	return nil
}
