package server

import (
	"fmt"
	"strconv"
	"strings"
)

func stringParam(params map[string]interface{}, key, defaultVal string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
		// Device IDs may arrive as JSON numbers
		if f, ok := v.(float64); ok {
			return strconv.FormatUint(uint64(f), 10)
		}
		return fmt.Sprintf("%v", v)
	}
	return defaultVal
}

func intParam(params map[string]interface{}, key string, defaultVal int) int {
	if v, ok := params[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case int64:
			return int(n)
		case string:
			if i, err := strconv.ParseInt(strings.TrimSpace(n), 0, 64); err == nil {
				return int(i)
			}
		}
	}
	return defaultVal
}

func boolParam(params map[string]interface{}, key string, defaultVal bool) bool {
	if v, ok := params[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}
