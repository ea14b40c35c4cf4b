// Package codec is the single JSON encode/decode path the rest of this
// module calls through — request/response bodies in pkg/transport/httpclient,
// WebSocket frame payloads in pkg/transport/wsclient, journal records in
// pkg/journal. It replaces two competing JSONEncode/JSONDecode
// implementations (one Sonic-backed, one a Go-1.24 stdlib fallback that
// shipped without a build tag excluding the Sonic version, so both defined
// the same symbol) with one implementation that always uses Sonic.
package codec

import (
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
)

// ErrNilValue is returned by Encode when asked to encode a nil interface.
var ErrNilValue = errors.New("codec: cannot encode nil value")

// ErrEmptyData is returned by Decode when given zero-length input.
var ErrEmptyData = errors.New("codec: cannot decode empty data")

// Encode marshals v to JSON using Sonic's JIT-compiled encoder.
func Encode(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, ErrNilValue
	}
	data, err := sonic.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("codec: encode: %w", err)
	}
	return data, nil
}

// Decode unmarshals JSON data into v using Sonic.
func Decode(data []byte, v interface{}) error {
	if len(data) == 0 {
		return ErrEmptyData
	}
	if v == nil {
		return errors.New("codec: cannot decode into nil value")
	}
	if err := sonic.Unmarshal(data, v); err != nil {
		return fmt.Errorf("codec: decode: %w", err)
	}
	return nil
}
