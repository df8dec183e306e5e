package store

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
)

// dataSetKeySeparator joins provider id and data set id into one
// partition key. Identifiers containing it are rejected at the API
// boundary, so decoding is an unambiguous split.
const dataSetKeySeparator = "\n"

// contentKeyDelimiter separates the components of a content object key.
const contentKeyDelimiter = "|"

// ValidateID rejects identifiers that would collide with the data set
// key separator or the content key delimiter. Empty ids are rejected too.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("identifier must not be empty")
	}
	if strings.Contains(id, dataSetKeySeparator) {
		return fmt.Errorf("identifier %q must not contain a newline", id)
	}
	if strings.Contains(id, contentKeyDelimiter) {
		return fmt.Errorf("identifier %q must not contain %q", id, contentKeyDelimiter)
	}
	return nil
}

// EncodeDataSetKey serializes a (providerID, dataSetID) pair into the
// single partition key used by the assignments table.
func EncodeDataSetKey(providerID, dataSetID string) string {
	return providerID + dataSetKeySeparator + dataSetID
}

// DecodeDataSetKey splits an encoded compound data set id back into its
// components.
func DecodeDataSetKey(key string) (providerID, dataSetID string, err error) {
	parts := strings.SplitN(key, dataSetKeySeparator, 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("malformed data set key %q", key)
	}
	return parts[0], parts[1], nil
}

// EncodePageToken serializes a page boundary — the (cloudID, schema) of
// the next unread assignment row — into an opaque token. Length-prefixed
// concatenation keeps the encoding unambiguous for empty components and
// components containing any delimiter.
func EncodePageToken(cloudID, schema string) string {
	buf := make([]byte, 0, len(cloudID)+len(schema)+2*binary.MaxVarintLen64)
	buf = binary.AppendUvarint(buf, uint64(len(cloudID)))
	buf = append(buf, cloudID...)
	buf = binary.AppendUvarint(buf, uint64(len(schema)))
	buf = append(buf, schema...)
	return base64.RawURLEncoding.EncodeToString(buf)
}

// DecodePageToken decodes a token produced by EncodePageToken.
func DecodePageToken(token string) (cloudID, schema string, err error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", "", fmt.Errorf("malformed page token: %w", err)
	}
	cloudID, rest, err := readLengthPrefixed(raw)
	if err != nil {
		return "", "", fmt.Errorf("malformed page token: %w", err)
	}
	schema, rest, err = readLengthPrefixed(rest)
	if err != nil {
		return "", "", fmt.Errorf("malformed page token: %w", err)
	}
	if len(rest) != 0 {
		return "", "", fmt.Errorf("malformed page token: trailing bytes")
	}
	return cloudID, schema, nil
}

func readLengthPrefixed(buf []byte) (value string, rest []byte, err error) {
	n, consumed := binary.Uvarint(buf)
	if consumed <= 0 {
		return "", nil, fmt.Errorf("truncated length prefix")
	}
	buf = buf[consumed:]
	if uint64(len(buf)) < n {
		return "", nil, fmt.Errorf("truncated value")
	}
	return string(buf[:n]), buf[n:], nil
}
