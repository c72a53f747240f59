package model

import (
	"bytes"
	"encoding/json"
)

// NormalizeMessages splits a message-list payload into its raw elements.
// The payload may be a JSON array or a JSON string whose content is an array.
// Anything else, including malformed JSON, yields an empty list and no error.
func NormalizeMessages(raw json.RawMessage) []json.RawMessage {
	elems, _ := splitMessageList(raw)
	return elems
}

// IsMessageList reports whether raw normalizes from an array or an
// array-encoding string, as opposed to falling back to the empty list.
func IsMessageList(raw json.RawMessage) bool {
	_, ok := splitMessageList(raw)
	return ok
}

func splitMessageList(raw json.RawMessage) ([]json.RawMessage, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []json.RawMessage{}, false
	}

	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return []json.RawMessage{}, false
		}
		raw = bytes.TrimSpace([]byte(s))
	}

	if len(raw) == 0 || raw[0] != '[' {
		return []json.RawMessage{}, false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return []json.RawMessage{}, false
	}
	if elems == nil {
		elems = []json.RawMessage{}
	}
	return elems, true
}

// DecodeStoredBlocks turns a stored message list into blocks for reading.
// Elements that are not objects, or do not decode, are dropped.
func DecodeStoredBlocks(raw []byte) []MessageBlock {
	elems := NormalizeMessages(raw)
	blocks := make([]MessageBlock, 0, len(elems))
	for _, e := range elems {
		e = bytes.TrimSpace(e)
		if len(e) == 0 || e[0] != '{' {
			continue
		}
		var b MessageBlock
		if err := json.Unmarshal(e, &b); err != nil {
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks
}

// EncodeBlocks marshals a message list for storage. A nil list encodes as [].
func EncodeBlocks(blocks []MessageBlock) ([]byte, error) {
	if blocks == nil {
		blocks = []MessageBlock{}
	}
	return json.Marshal(blocks)
}
