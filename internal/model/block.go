package model

import (
	"encoding/json"
	"net/url"
	"path"
	"strings"
)

// BlockKind is the content type of a MessageBlock.
type BlockKind string

const (
	KindText     BlockKind = "text"
	KindImage    BlockKind = "image"
	KindVideo    BlockKind = "video"
	KindAudio    BlockKind = "audio"
	KindDocument BlockKind = "document"
)

// IsValid reports whether k is one of the five block kinds.
func (k BlockKind) IsValid() bool {
	switch k {
	case KindText, KindImage, KindVideo, KindAudio, KindDocument:
		return true
	}
	return false
}

// IsAttachment reports whether blocks of this kind carry a stored object URL.
func (k BlockKind) IsAttachment() bool {
	return k.IsValid() && k != KindText
}

// Mode selects whether a block is broadcast or sent privately to the operating bot.
type Mode string

const (
	ModeDebug      Mode = "debug"
	ModeProduction Mode = "production"
)

// SendBy selects the channel a block is sent through.
type SendBy string

const (
	// SendByPrimaryBot signs the message as the primary bot channel.
	SendByPrimaryBot SendBy = "cw"
	// SendByMessagingAPI sends through the messaging API instance.
	SendByMessagingAPI SendBy = "evolutionapi"
)

// MessageBlock is one unit of a message flow.
type MessageBlock struct {
	Kind    BlockKind `json:"kind"`
	Mode    Mode      `json:"mode"`
	SendBy  SendBy    `json:"sendBy"`
	URL     string    `json:"url"`
	Message string    `json:"message"`
}

// UnmarshalJSON accepts the canonical keys as well as the older "type" and
// "send_by" spellings. Missing mode and sendBy take their defaults; a missing
// kind is inferred from the URL.
func (b *MessageBlock) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind         BlockKind `json:"kind"`
		Type         BlockKind `json:"type"`
		Mode         Mode      `json:"mode"`
		SendBy       SendBy    `json:"sendBy"`
		SendByLegacy SendBy    `json:"send_by"`
		URL          string    `json:"url"`
		Message      string    `json:"message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*b = MessageBlock{
		Kind:    raw.Kind,
		Mode:    raw.Mode,
		SendBy:  raw.SendBy,
		URL:     strings.TrimSpace(raw.URL),
		Message: raw.Message,
	}
	if b.Kind == "" {
		b.Kind = raw.Type
	}
	if b.SendBy == "" {
		b.SendBy = raw.SendByLegacy
	}
	if b.Mode == "" {
		b.Mode = ModeProduction
	}
	if b.SendBy == "" {
		b.SendBy = SendByMessagingAPI
	}
	if b.Kind == "" {
		b.Kind = InferKind(b.URL)
	}
	return nil
}

// InferKind guesses the kind of a block that was saved without one. Blocks
// without a URL are text; otherwise the URL's extension decides, falling back
// to document.
func InferKind(rawURL string) BlockKind {
	if rawURL == "" {
		return KindText
	}
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		p = u.Path
	}
	if k, ok := KindForExtension(path.Ext(p)); ok {
		return k
	}
	return KindDocument
}

// Normalize trims the text fields and clears the caption of audio blocks,
// which the delivery channel cannot carry.
func (b *MessageBlock) Normalize() {
	b.URL = strings.TrimSpace(b.URL)
	b.Message = strings.TrimSpace(b.Message)
	if b.Kind == KindAudio {
		b.Message = ""
	}
}

// ValidateBlock checks a single block. field is used as the prefix of any
// reported field errors (e.g. "messagesCnpj[2]").
func ValidateBlock(field string, b *MessageBlock) []FieldError {
	var errs []FieldError

	if !b.Kind.IsValid() {
		errs = append(errs, FieldError{Field: field + ".kind", Message: "invalid value " + quote(string(b.Kind))})
	}
	if b.Mode != ModeDebug && b.Mode != ModeProduction {
		errs = append(errs, FieldError{Field: field + ".mode", Message: "invalid value " + quote(string(b.Mode))})
	}
	if b.SendBy != SendByPrimaryBot && b.SendBy != SendByMessagingAPI {
		errs = append(errs, FieldError{Field: field + ".sendBy", Message: "invalid value " + quote(string(b.SendBy))})
	}

	switch {
	case b.Kind == KindText:
		if strings.TrimSpace(b.Message) == "" {
			errs = append(errs, FieldError{Field: field + ".message", Message: "is required for text blocks"})
		}
	case b.Kind.IsAttachment():
		if b.URL == "" {
			if strings.TrimSpace(b.Message) != "" {
				errs = append(errs, FieldError{Field: field + ".url", Message: "caption without a file, use a text block instead"})
			} else {
				errs = append(errs, FieldError{Field: field + ".url", Message: "is required for " + string(b.Kind) + " blocks"})
			}
		}
	}
	return errs
}

func quote(s string) string {
	return `"` + s + `"`
}
