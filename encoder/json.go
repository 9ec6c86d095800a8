package encoder

import (
	"github.com/leeforge/logroute/record"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// JSON encodes records as one JSON object per line using zapcore.
type JSON struct {
	enc zapcore.Encoder
}

// NewJSON returns a JSON encoder with the default key layout.
func NewJSON() *JSON {
	return &JSON{enc: zapcore.NewJSONEncoder(jsonEncoderConfig())}
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:     "message",
		LevelKey:       "level",
		TimeKey:        "time",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		StacktraceKey:  zapcore.OmitKey,
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    encodeLevel,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

// encodeLevel writes our level names, so trace is not rendered as Level(-2).
func encodeLevel(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(record.FromZapLevel(l).LowerString())
}

// Encode implements Encoder.
func (j *JSON) Encode(buf *buffer.Buffer, r *record.Record) error {
	out, err := j.enc.EncodeEntry(r.Entry(), r.Fields)
	if err != nil {
		return err
	}
	defer out.Free()
	_, err = buf.Write(out.Bytes())
	return err
}

var _ Encoder = (*JSON)(nil)
