package tgui

import (
	"errors"
	"fmt"
	"strings"
)

// MaxCallbackDataLen is Telegram's callback_data limit in bytes, for the
// whole "namespace:action:payload" string.
const MaxCallbackDataLen = 64

var ErrCallbackDataTooLong = errors.New("tgui: callback_data too long")

// Data formats callback data as "namespace:action:payload". The payload is
// kept as-is and may itself contain ':'.
func Data(namespace, action, payload string) (string, error) {
	s := strings.TrimSpace(namespace) + ":" + strings.TrimSpace(action)
	if payload != "" {
		s += ":" + payload
	}
	if len(s) > MaxCallbackDataLen {
		return "", fmt.Errorf("%w: %d bytes", ErrCallbackDataTooLong, len(s))
	}
	return s, nil
}
