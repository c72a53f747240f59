package remarketing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/jaupesca/remarketing-gateway/internal/model"
)

// Input precedence. The first key present with a non-null value wins.
var (
	accountIDKeys   = []string{"accountId", "id_account"}
	accessTokenKeys = []string{"accessToken", "access_token"}
	baseURLKeys     = []string{"baseUrl", "url_base"}
	instanceKeys    = []string{"instance", "instanceName"}

	thresholdCNPJKeys     = []string{"inactivityThresholdCnpj", "tempo_inativo_cnpj"}
	thresholdGenericKeys  = []string{"inactivityThresholdGeneric", "tempo_inativo_gen"}
	thresholdCombinedKeys = []string{"inactivityThreshold", "tempo_inativo"}

	// For message lists a key only wins if it holds an array or a string
	// encoding one.
	messagesCNPJKeys    = []string{"messagesCnpj", "messages", "messages_cnpj"}
	messagesGenericKeys = []string{"messagesGeneric", "messages_generico"}
)

// ConfigInput is the body of a create or replace request, kept raw so that
// every accepted spelling and encoding is resolved by NormalizeConfigInput.
type ConfigInput map[string]json.RawMessage

// first returns the value of the first key present and not null.
func (in ConfigInput) first(keys []string) (json.RawMessage, bool) {
	for _, k := range keys {
		v, ok := in[k]
		if !ok || isNull(v) {
			continue
		}
		return v, true
	}
	return nil, false
}

// NormalizeConfigInput resolves a request body into the canonical write
// fields and validates them. Write-path thresholds default to 0.
func NormalizeConfigInput(in ConfigInput) (model.ConfigFields, error) {
	var (
		f  model.ConfigFields
		ve model.ValidationError
	)

	if v, ok := in.first(accountIDKeys); ok {
		n, err := lenientInt(v)
		if err != nil {
			ve.Add("accountId", err.Error())
		}
		f.AccountID = n
	}
	f.AccessToken = lenientString(in, accessTokenKeys)
	f.BaseURL = lenientString(in, baseURLKeys)
	f.Instance = lenientString(in, instanceKeys)

	f.InactivityThresholdCNPJ = threshold(in, "inactivityThresholdCnpj", thresholdCNPJKeys, &ve)
	f.InactivityThresholdGeneric = threshold(in, "inactivityThresholdGeneric", thresholdGenericKeys, &ve)

	f.MessagesCNPJ = decodeBlocks(in, "messagesCnpj", messagesCNPJKeys, &ve)
	f.MessagesGeneric = decodeBlocks(in, "messagesGeneric", messagesGenericKeys, &ve)

	if ve.HasErrors() {
		return f, &ve
	}
	if err := model.ValidateConfigFields(&f); err != nil {
		return f, err
	}
	return f, nil
}

// threshold resolves one channel's threshold: the channel field, then the
// combined legacy field, then 0.
func threshold(in ConfigInput, field string, channelKeys []string, ve *model.ValidationError) int {
	v, ok := in.first(channelKeys)
	if !ok {
		v, ok = in.first(thresholdCombinedKeys)
	}
	if !ok {
		return 0
	}
	n, err := lenientInt(v)
	if err != nil {
		ve.Add(field, err.Error())
		return 0
	}
	if n > math.MaxInt32 {
		ve.Add(field, "is too large")
		return 0
	}
	return int(n)
}

func decodeBlocks(in ConfigInput, field string, keys []string, ve *model.ValidationError) []model.MessageBlock {
	for _, k := range keys {
		v, ok := in[k]
		if !ok || !model.IsMessageList(v) {
			continue
		}
		blocks, errs := DecodeBlocksStrict(field, v)
		ve.Errors = append(ve.Errors, errs...)
		return blocks
	}
	return []model.MessageBlock{}
}

// DecodeBlocksStrict normalizes raw into elements and decodes every element
// into a MessageBlock. Elements that are not block objects are reported as
// field errors rather than dropped.
func DecodeBlocksStrict(field string, raw json.RawMessage) ([]model.MessageBlock, []model.FieldError) {
	elems := model.NormalizeMessages(raw)
	blocks := make([]model.MessageBlock, 0, len(elems))
	var errs []model.FieldError
	for i, e := range elems {
		name := fmt.Sprintf("%s[%d]", field, i)
		e = bytes.TrimSpace(e)
		if len(e) == 0 || e[0] != '{' {
			errs = append(errs, model.FieldError{Field: name, Message: "must be an object"})
			continue
		}
		var b model.MessageBlock
		if err := json.Unmarshal(e, &b); err != nil {
			errs = append(errs, model.FieldError{Field: name, Message: "is malformed: " + err.Error()})
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks, errs
}

// NormalizeInstanceIDs keeps the positive integers of raw, which may be an
// array (or a string encoding one) of numbers or numeric strings. Duplicates
// are dropped and first-seen order is kept.
func NormalizeInstanceIDs(raw json.RawMessage) []int64 {
	seen := make(map[int64]bool)
	ids := []int64{}
	for _, e := range model.NormalizeMessages(raw) {
		n, ok := positiveInt(e)
		if !ok || seen[n] {
			continue
		}
		seen[n] = true
		ids = append(ids, n)
	}
	return ids
}

func positiveInt(raw json.RawMessage) (int64, bool) {
	f, ok := jsonNumber(raw)
	if !ok || f < 1 || f != math.Trunc(f) || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// lenientInt reads a JSON number or numeric string. Values that are not
// numeric read as 0; negative or fractional numbers are errors.
func lenientInt(raw json.RawMessage) (int64, error) {
	f, ok := jsonNumber(raw)
	if !ok {
		return 0, nil
	}
	if f < 0 {
		return 0, fmt.Errorf("must not be negative, got %v", f)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("must be a whole number, got %v", f)
	}
	if f >= math.MaxInt64 {
		return 0, fmt.Errorf("is too large")
	}
	return int64(f), nil
}

func jsonNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	var s string
	if len(raw) > 0 && raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false
		}
		s = strings.TrimSpace(s)
	} else {
		s = string(raw)
	}
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// lenientString reads a string field; numbers keep their literal text and
// any other type reads as "".
func lenientString(in ConfigInput, keys []string) string {
	v, ok := in.first(keys)
	if !ok {
		return ""
	}
	v = bytes.TrimSpace(v)
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return strings.TrimSpace(s)
	}
	if _, ok := jsonNumber(v); ok && v[0] != '"' {
		return string(v)
	}
	return ""
}

func isNull(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}
