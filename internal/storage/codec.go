package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// CodecZstd marks a value stored as a zstd-compressed JSON document.
const CodecZstd = "zstd"

// envelope wraps a compressed value. Data marshals as base64.
type envelope struct {
	Codec string `json:"codec"`
	Data  []byte `json:"data"`
}

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

// encodeValue marshals v, wrapping it in a zstd envelope when compress is set.
func encodeValue(v any, compress bool) (json.RawMessage, error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if !compress {
		return plain, nil
	}
	return json.Marshal(envelope{Codec: CodecZstd, Data: zstdEncoder.EncodeAll(plain, nil)})
}

// decodeValue unmarshals raw into v, unwrapping a zstd envelope if present.
// Plain values are accepted regardless of the current compression setting.
func decodeValue(raw json.RawMessage, v any) error {
	plain, err := unwrap(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(plain, v)
}

func unwrap(raw json.RawMessage) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' || !bytes.Contains(trimmed, []byte(`"codec"`)) {
		return trimmed, nil
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil || env.Codec == "" {
		return trimmed, nil
	}
	if env.Codec != CodecZstd {
		return nil, fmt.Errorf("unsupported codec %q", env.Codec)
	}
	plain, err := zstdDecoder.DecodeAll(env.Data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress value: %w", err)
	}
	return plain, nil
}

// compressedSize returns the zstd-compressed length of v's JSON encoding
// alongside the plain length.
func compressedSize(v any) (plainLen, compressedLen int, err error) {
	plain, err := json.Marshal(v)
	if err != nil {
		return 0, 0, err
	}
	return len(plain), len(zstdEncoder.EncodeAll(plain, nil)), nil
}
