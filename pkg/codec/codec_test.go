package codec_test

import (
	"testing"

	"github.com/fluxorio/asyncnet/pkg/codec"
)

type payload struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := payload{Name: "x", N: 7}
	data, err := codec.Encode(in)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var out payload
	if err := codec.Decode(data, &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out != in {
		t.Fatalf("round trip = %+v, want %+v", out, in)
	}
}

func TestEncodeNilIsError(t *testing.T) {
	if _, err := codec.Encode(nil); err != codec.ErrNilValue {
		t.Fatalf("Encode(nil) = %v, want ErrNilValue", err)
	}
}

func TestDecodeEmptyIsError(t *testing.T) {
	var out payload
	if err := codec.Decode(nil, &out); err != codec.ErrEmptyData {
		t.Fatalf("Decode(nil, ...) = %v, want ErrEmptyData", err)
	}
}
