package protocol

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	serverErrorPrefix = "Error"
	welcomeKey        = "welcome"
	messageKey        = "message"
	idKey             = "id"
	pingMessage       = "ping"
)

// Classify maps a raw text frame to its category. It reports false for an
// empty frame, which callers discard without treating it as an error.
//
// First match wins: invalid JSON (server error text or malformed), non-object
// JSON, welcome, the exact ping shape, and finally now-playing data.
func Classify(text string) (Frame, bool) {
	if text == "" {
		return Frame{}, false
	}

	data := []byte(text)
	if !json.Valid(data) {
		if strings.HasPrefix(text, serverErrorPrefix) {
			return Frame{Kind: KindServerError, Text: text}, true
		}
		return Frame{Kind: KindMalformed, Text: text, Err: ErrNotJSON}, true
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil || obj == nil {
		return Frame{Kind: KindMalformed, Text: text, Err: ErrNotObject}, true
	}

	if isWelcome(obj) {
		id, ok := integerField(obj, idKey)
		if !ok {
			return Frame{Kind: KindMalformed, Text: text, Err: ErrBadWelcome}, true
		}
		return Frame{Kind: KindWelcome, ClientID: id, Text: text}, true
	}

	if isPing(obj) {
		return Frame{Kind: KindPing, Text: text}, true
	}

	return Frame{Kind: KindNowPlaying, Text: text}, true
}

func isWelcome(obj map[string]json.RawMessage) bool {
	if _, ok := obj[welcomeKey]; ok {
		return true
	}
	msg, ok := stringField(obj, messageKey)
	return ok && msg == welcomeKey
}

// isPing matches exactly {"message":"ping"}; any extra key makes it data.
func isPing(obj map[string]json.RawMessage) bool {
	if len(obj) != 1 {
		return false
	}
	msg, ok := stringField(obj, messageKey)
	return ok && msg == pingMessage
}

func stringField(obj map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := obj[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// integerField accepts a bare JSON integer. Quoted numbers and numbers
// with a fraction or exponent are rejected.
func integerField(obj map[string]json.RawMessage, key string) (int, bool) {
	raw := bytes.TrimSpace(obj[key])
	if len(raw) == 0 || raw[0] == '"' {
		return 0, false
	}
	i, err := json.Number(raw).Int64()
	if err != nil {
		return 0, false
	}
	return int(i), true
}
