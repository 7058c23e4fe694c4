// Package codec converts editor text to and from the transport form used by
// the contents API: standard base64 over the UTF-8 bytes of the text.
package codec

import (
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Encoding is the name the contents API gives to this transport form.
const Encoding = "base64"

// DecodeError reports a transport string that could not be turned back into text.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding content: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Encode returns the base64 form of text's UTF-8 bytes.
func Encode(text string) string {
	return base64.StdEncoding.EncodeToString([]byte(text))
}

// Decode reverses Encode. ASCII whitespace is ignored because the contents API
// wraps its base64 payloads across lines. The decoded bytes must be valid UTF-8.
func Decode(s string) (string, error) {
	compact := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n', '\r', '\f':
			return -1
		}
		return r
	}, s)

	data, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return "", &DecodeError{Err: err}
	}
	if !utf8.Valid(data) {
		return "", &DecodeError{Err: fmt.Errorf("content is not valid UTF-8")}
	}
	return string(data), nil
}
