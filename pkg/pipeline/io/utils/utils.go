package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Compress gzips data
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	compr := gzip.NewWriter(&buf)
	if _, err := compr.Write(data); err != nil {
		return nil, err
	}
	if err := compr.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress gunzips data. Payloads that are not gzipped are returned as is so a queue can be
// drained across a change of the compress setting.
func Decompress(data []byte) []byte {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return data
	}
	defer reader.Close()
	out, err := io.ReadAll(reader)
	if err != nil {
		return data
	}
	return out
}

// CheckPayload makes sure a consumed message is a json object before it is handed to the consumer
func CheckPayload(in []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(in)
	if len(trimmed) == 0 {
		return in, errors.New("empty payload")
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return in, errors.New("payload is not a json object")
	}
	return trimmed, nil
}
