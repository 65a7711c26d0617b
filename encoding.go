package botmaster

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/traditionalchinese"
)

// TextDecoder normalises server-supplied byte strings to UTF-8. Game
// servers commonly send legacy-codepage text (GBK in the wild), so bytes
// that are not already valid UTF-8 are run through the configured decoder.
type TextDecoder struct {
	enc encoding.Encoding
}

// NewTextDecoder builds a decoder for the named legacy encoding.
// Unknown names fall back to GBK.
func NewTextDecoder(name string) *TextDecoder {
	var enc encoding.Encoding
	switch strings.ToUpper(name) {
	case "GBK", "GB2312":
		enc = simplifiedchinese.GBK
	case "GB18030":
		enc = simplifiedchinese.GB18030
	case "BIG5":
		enc = traditionalchinese.Big5
	default:
		enc = simplifiedchinese.GBK
	}
	return &TextDecoder{enc: enc}
}

// EnsureUTF8 returns s as valid UTF-8, decoding through the legacy
// encoding when needed. Undecodable input is returned with invalid
// sequences replaced.
func (d *TextDecoder) EnsureUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := d.enc.NewDecoder().Bytes(b)
	if err != nil || !utf8.Valid(out) {
		return strings.ToValidUTF8(string(b), string(utf8.RuneError))
	}
	return string(out)
}

// EncodeGame converts UTF-8 text back to the legacy encoding for outbound
// chat. Text that cannot be represented is sent as-is.
func (d *TextDecoder) EncodeGame(s string) []byte {
	out, err := d.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return out
}
