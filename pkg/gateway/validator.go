package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/antibyte/webdesk/pkg/configuration"
)

const (
	MaxJSONKeys      = 32
	MaxJSONStringLen = 4096
	MaxJSONArraySize = 256
)

var (
	ErrJSONTooDeep       = errors.New("JSON nesting too deep")
	ErrJSONTooManyKeys   = errors.New("too many keys in JSON object")
	ErrJSONStringTooLong = errors.New("JSON string too long")
	ErrJSONArrayTooLarge = errors.New("JSON array too large")
	ErrJSONMalicious     = errors.New("potentially malicious JSON detected")
)

// JSONValidator bounds the shape of incoming requests before they are
// decoded. String contents are left alone: terminal input legitimately
// contains things like "cd ../docs".
type JSONValidator struct {
	MaxDepth     int
	MaxKeys      int
	MaxStringLen int
	MaxArraySize int
	MaxBytes     int
}

// NewJSONValidator reads the depth and size limits from [Network].
func NewJSONValidator() *JSONValidator {
	return &JSONValidator{
		MaxDepth:     configuration.GetInt("Network", "max_json_depth", 6),
		MaxKeys:      MaxJSONKeys,
		MaxStringLen: MaxJSONStringLen,
		MaxArraySize: MaxJSONArraySize,
		MaxBytes:     configuration.GetInt("Network", "max_message_size_kb", 64) * 1024,
	}
}

// ValidateJSON rejects payloads that are oversized, malformed or too deeply
// nested.
func (v *JSONValidator) ValidateJSON(data []byte) error {
	if v.MaxBytes > 0 && len(data) > v.MaxBytes {
		return errors.New("JSON payload too large")
	}
	var obj interface{}
	decoder := json.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&obj); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if _, ok := obj.(map[string]interface{}); !ok {
		return errors.New("invalid JSON: request must be an object")
	}
	return v.validateStructure(obj, 0)
}

func (v *JSONValidator) validateStructure(obj interface{}, depth int) error {
	if depth > v.MaxDepth {
		return ErrJSONTooDeep
	}
	switch val := obj.(type) {
	case map[string]interface{}:
		if len(val) > v.MaxKeys {
			return ErrJSONTooManyKeys
		}
		for key, value := range val {
			if len(key) > v.MaxStringLen {
				return ErrJSONStringTooLong
			}
			if isMaliciousKey(key) {
				return ErrJSONMalicious
			}
			if err := v.validateStructure(value, depth+1); err != nil {
				return err
			}
		}
	case []interface{}:
		if len(val) > v.MaxArraySize {
			return ErrJSONArrayTooLarge
		}
		for _, item := range val {
			if err := v.validateStructure(item, depth+1); err != nil {
				return err
			}
		}
	case string:
		if len(val) > v.MaxStringLen {
			return ErrJSONStringTooLong
		}
	}
	return nil
}

var maliciousKeys = []string{"__proto__", "constructor", "prototype"}

func isMaliciousKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, pattern := range maliciousKeys {
		if strings.Contains(keyLower, pattern) {
			return true
		}
	}
	return false
}

// ValidateSessionID accepts up to 128 letters, digits, '-' and '_'.
func ValidateSessionID(sessionID string) error {
	if sessionID == "" {
		return errors.New("session ID cannot be empty")
	}
	if len(sessionID) > 128 {
		return errors.New("session ID too long")
	}
	for _, r := range sessionID {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' {
			return fmt.Errorf("invalid character in session ID: %q", r)
		}
	}
	return nil
}
