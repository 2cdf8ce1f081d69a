package logging

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var logfmtPool = buffer.NewPool()

// logfmtEncoder emits compact key=value lines:
//
//	ts=15:04:05 lvl=info msg="document processed" pages=3 tables=1
//
// Context fields accumulate in the embedded map encoder; per-entry
// fields are rendered at encode time. Keys within each group are
// sorted for stable output.
type logfmtEncoder struct {
	*zapcore.MapObjectEncoder
}

func newLogfmtEncoder() zapcore.Encoder {
	return &logfmtEncoder{MapObjectEncoder: zapcore.NewMapObjectEncoder()}
}

func (e *logfmtEncoder) Clone() zapcore.Encoder {
	clone := &logfmtEncoder{MapObjectEncoder: zapcore.NewMapObjectEncoder()}
	for k, v := range e.Fields {
		clone.Fields[k] = v
	}
	return clone
}

func (e *logfmtEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line := logfmtPool.Get()

	appendPair(line, "ts", ent.Time.Format("15:04:05"))
	appendPair(line, "lvl", ent.Level.String())
	if ent.Caller.Defined {
		appendPair(line, "caller", ent.Caller.TrimmedPath())
	}
	appendPair(line, "msg", ent.Message)

	appendSorted(line, e.Fields)

	if len(fields) > 0 {
		entryFields := zapcore.NewMapObjectEncoder()
		for _, f := range fields {
			f.AddTo(entryFields)
		}
		appendSorted(line, entryFields.Fields)
	}

	if ent.Stack != "" {
		appendPair(line, "stacktrace", ent.Stack)
	}

	line.AppendString(zapcore.DefaultLineEnding)
	return line, nil
}

func appendSorted(buf *buffer.Buffer, fields map[string]interface{}) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		appendPair(buf, k, formatValue(fields[k]))
	}
}

func appendPair(buf *buffer.Buffer, key, value string) {
	if buf.Len() > 0 {
		buf.AppendByte(' ')
	}
	buf.AppendString(key)
	buf.AppendByte('=')
	if strings.ContainsAny(value, " \t\n\r\"=") {
		buf.AppendString(strconv.Quote(value))
	} else {
		buf.AppendString(value)
	}
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case error:
		return val.Error()
	case time.Time:
		return val.Format(time.RFC3339)
	case time.Duration:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", val)
	}
}

var _ zapcore.Encoder = (*logfmtEncoder)(nil)
