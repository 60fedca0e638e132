package observability

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Logger emits one JSON object per line on stdout, which is what serverless
// log drains expect. It carries a fixed service field so aggregated streams
// stay attributable.
type Logger struct {
	base    *log.Logger
	service string
}

func NewLogger(service string) *Logger {
	return &Logger{
		base:    log.New(os.Stdout, "", 0),
		service: service,
	}
}

func (l *Logger) Info(event string, fields map[string]any) {
	l.write("info", event, fields)
}

func (l *Logger) Warn(event string, fields map[string]any) {
	l.write("warn", event, fields)
}

func (l *Logger) Error(event string, fields map[string]any) {
	l.write("error", event, fields)
}

func (l *Logger) write(level, event string, fields map[string]any) {
	payload := make(map[string]any, len(fields)+4)
	for k, v := range fields {
		payload[k] = v
	}
	payload["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	payload["level"] = level
	payload["event"] = event
	if l.service != "" {
		payload["service"] = l.service
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		l.base.Println(`{"level":"error","event":"log_encode_failed"}`)
		return
	}

	l.base.Println(string(encoded))
}
