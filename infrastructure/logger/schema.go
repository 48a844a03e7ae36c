package logger

import (
	"fmt"
	"sort"
	"strings"
)

// Schema 定义每类日志事件所需的关键字段，便于集中校验。
type Schema struct {
	Event    string
	Required []string
}

var schemas = map[string]Schema{
	"signal_event": {
		Event:    "signal_event",
		Required: []string{"event", "signal_id", "ts"},
	},
	"fill_event": {
		Event:    "fill_event",
		Required: []string{"event", "ts"},
	},
	"risk_event": {
		Event:    "risk_event",
		Required: []string{"event", "ts"},
	},
	"halt_event": {
		Event:    "halt_event",
		Required: []string{"halt_reason", "ts"},
	},
	"error_event": {
		Event:    "error_event",
		Required: []string{"error", "ts"},
	},
}

// KnownEvents 返回所有事件名，便于外部生成文档。
func KnownEvents() []string {
	names := make([]string, 0, len(schemas))
	for k := range schemas {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ValidateEvent 检查日志字段是否包含 schema 中要求的 key。
// 未登记的事件不校验。
func ValidateEvent(event string, fields map[string]interface{}) error {
	s, ok := schemas[event]
	if !ok {
		return nil
	}
	var missing []string
	for _, key := range s.Required {
		if _, exists := fields[key]; !exists {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("event %s missing fields: %s", event, strings.Join(missing, ","))
	}
	return nil
}
