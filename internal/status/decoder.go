package status

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/gsc-tools/gsc-mon/internal/logging"
)

var statusLog = logging.ForComponent(logging.CompStatus)

// DecodeError reports a status message that is not a well-formed record.
type DecodeError struct {
	Raw   []byte
	Codec Codec
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s status: %v", e.Codec, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// inputModeNames maps the driver's mode codes to display names.
var inputModeNames = map[string]string{
	"I":  "Insert",
	"C":  "Command",
	"P":  "Passthrough",
	"FA": "Full Auto",
	"SA": "Semi Auto",
}

// Decoder turns raw status messages into Contexts. It has no mutable state;
// the same bytes always produce the same Context.
type Decoder struct {
	codec Codec
}

// NewDecoder returns a decoder for codec. An empty codec means JSON.
func NewDecoder(codec Codec) *Decoder {
	if codec == "" {
		codec = CodecJSON
	}
	return &Decoder{codec: codec}
}

// Codec returns the decoder's wire codec.
func (d *Decoder) Codec() Codec { return d.codec }

// Decode parses one status message. Malformed input yields a *DecodeError.
func (d *Decoder) Decode(raw []byte) (*Context, error) {
	record, err := unmarshalRecord(d.codec, raw)
	if err != nil {
		statusLog.Debug("decode_failed",
			slog.String("codec", string(d.codec)),
			slog.Int("bytes", len(raw)),
			slog.String("error", err.Error()))
		return nil, &DecodeError{Raw: append([]byte(nil), raw...), Codec: d.codec, Err: err}
	}

	if current, ok := record[FieldCurrentLine]; ok {
		progress := ""
		if p, ok := record[FieldProgress]; ok {
			progress = textOf(p)
		}
		record[FieldRemainder] = Remainder(textOf(current), progress)
	} else {
		delete(record, FieldRemainder)
	}

	if mode, ok := record[FieldInputMode]; ok {
		record[FieldInputModeName] = InputModeName(textOf(mode))
	} else {
		delete(record, FieldInputModeName)
	}

	return NewContext(record), nil
}

// Remainder returns the part of line not yet typed. progress is stripped
// only when it is a literal prefix of line; otherwise line is returned as is,
// since the two may briefly disagree across message boundaries.
func Remainder(line, progress string) string {
	rest, _ := strings.CutPrefix(line, progress)
	return rest
}

// InputModeName expands a driver mode code. Unknown codes are returned unchanged.
func InputModeName(code string) string {
	if name, ok := inputModeNames[code]; ok {
		return name
	}
	return code
}
