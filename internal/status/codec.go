package status

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Codec names the serialization of status records on the wire.
type Codec string

const (
	CodecJSON Codec = "json"
	CodecCBOR Codec = "cbor"
)

// ParseCodec validates a codec name. Empty selects JSON.
func ParseCodec(name string) (Codec, error) {
	switch Codec(name) {
	case "", CodecJSON:
		return CodecJSON, nil
	case CodecCBOR:
		return CodecCBOR, nil
	}
	return "", fmt.Errorf("unknown codec %q (want json or cbor)", name)
}

var errNotRecord = errors.New("not a record")

var cborDec cbor.DecMode

func init() {
	var err error
	cborDec, err = cbor.DecOptions{
		// Records are keyed by strings; map[interface{}]interface{} would be
		// useless to the template engine.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("status: CBOR decoder initialization failed: " + err.Error())
	}
}

func unmarshalRecord(codec Codec, raw []byte) (map[string]any, error) {
	var record map[string]any
	switch codec {
	case CodecCBOR:
		if err := cborDec.Unmarshal(raw, &record); err != nil {
			return nil, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&record); err != nil {
			return nil, err
		}
		if _, err := dec.Token(); !errors.Is(err, io.EOF) {
			return nil, errors.New("trailing data after record")
		}
	}
	if record == nil {
		return nil, errNotRecord
	}
	for k, v := range record {
		record[k] = normalize(v)
	}
	return record, nil
}

// normalize maps codec-specific scalar types onto int64, float64, string,
// bool and nil.
func normalize(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case uint64:
		if x <= math.MaxInt64 {
			return int64(x)
		}
		return float64(x)
	case float32:
		return float64(x)
	case []byte:
		return string(x)
	}
	return v
}

func jsonText(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}
