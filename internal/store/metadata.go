package store

import (
	"mime"
)

var metadataDecoder = new(mime.WordDecoder)

// EncodeMetadata makes values safe for x-amz-meta-* headers, which only carry
// US-ASCII. Non-ASCII values become RFC 2047 encoded words; ASCII values are
// left as they are.
func EncodeMetadata(meta map[string]string) map[string]string {
	if meta == nil {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		out[k] = mime.QEncoding.Encode("utf-8", v)
	}
	return out
}

// DecodeMetadata reverses EncodeMetadata. Values that fail to decode are kept raw.
func DecodeMetadata(meta map[string]string) map[string]string {
	if meta == nil {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		decoded, err := metadataDecoder.DecodeHeader(v)
		if err != nil {
			decoded = v
		}
		out[k] = decoded
	}
	return out
}
