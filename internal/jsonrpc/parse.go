package jsonrpc

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/valyala/fastjson"
)

var parserPool fastjson.ParserPool

// IsBatch reports whether the body opens a JSON array. The first
// non-whitespace byte decides between the single and batch branches before
// any full decode happens.
func IsBatch(body []byte) bool {
	for _, b := range body {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '[':
			return true
		default:
			return false
		}
	}
	return false
}

// PrepareError classifies a body that could not be decoded as any call
// shape. It returns a parse error for bodies that are not JSON at all, and
// an invalid request error with the best-effort extracted id otherwise.
func PrepareError(body []byte) (json.RawMessage, *Error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(body)
	if err != nil {
		return NullID, ErrParse
	}

	id := NullID
	if raw := v.Get("id"); raw != nil {
		switch raw.Type() {
		case fastjson.TypeNumber, fastjson.TypeString, fastjson.TypeNull:
			id = json.RawMessage(raw.MarshalTo(nil))
		}
	}
	return id, ErrInvalidRequest
}

// TruncateLog bounds a payload for logging. Oversized payloads are cut at a
// rune boundary and marked as truncated.
func TruncateLog(data []byte, maxLen uint32) string {
	if uint32(len(data)) <= maxLen {
		return string(data)
	}
	cut := int(maxLen)
	for cut > 0 && !utf8.RuneStart(data[cut]) {
		cut--
	}
	return string(data[:cut]) + "...(truncated)"
}
