package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

const serversKey = "mcpServers"

var errNoServerMap = errors.New("no server map found")

// firstEntry reads a JSON object from dec and returns its first key and
// value in document order, consuming the remainder of the object.
func firstEntry(dec *json.Decoder) (string, interface{}, bool, error) {
	if err := expectDelim(dec, '{'); err != nil {
		return "", nil, false, err
	}

	var (
		name  string
		value interface{}
		found bool
	)
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return "", nil, false, err
		}
		if !found {
			if err := dec.Decode(&value); err != nil {
				return "", nil, false, err
			}
			name, found = key, true
			continue
		}
		if err := skipValue(dec); err != nil {
			return "", nil, false, err
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return "", nil, false, err
	}
	return name, value, found, nil
}

// ParseJSONConfig extracts the first server of a JSON configuration blob.
//
// The blob is either {"mcpServers": {"<name>": <descriptor>, ...}} or a bare
// {"<name>": <descriptor>, ...} map whose first value looks like a
// descriptor. Only the first entry in document order is returned; further
// entries are ignored. The descriptor is returned verbatim.
//
// ok is false when the input is not a JSON object at all. err describes why
// a JSON object could not yield a server.
func ParseJSONConfig(input string) (name string, descriptor interface{}, ok bool, err error) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "{") {
		return "", nil, false, nil
	}
	if !json.Valid([]byte(trimmed)) {
		return "", nil, true, errors.New("input is not valid JSON")
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	if err := expectDelim(dec, '{'); err != nil {
		return "", nil, true, err
	}

	var (
		firstName  string
		firstValue interface{}
		haveFirst  bool
	)
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return "", nil, true, err
		}

		if key == serversKey {
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return "", nil, true, err
			}
			if !strings.HasPrefix(strings.TrimSpace(string(raw)), "{") {
				return "", nil, true, fmt.Errorf("%q must be an object", serversKey)
			}
			n, v, found, err := firstEntry(json.NewDecoder(strings.NewReader(string(raw))))
			if err != nil {
				return "", nil, true, err
			}
			if !found {
				return "", nil, true, fmt.Errorf("%q contains no servers", serversKey)
			}
			return n, v, true, nil
		}

		if !haveFirst {
			if err := dec.Decode(&firstValue); err != nil {
				return "", nil, true, err
			}
			firstName, haveFirst = key, true
			continue
		}
		if err := skipValue(dec); err != nil {
			return "", nil, true, err
		}
	}

	if haveFirst && looksLikeDescriptor(firstValue) {
		return firstName, firstValue, true, nil
	}
	return "", nil, true, errNoServerMap
}

func looksLikeDescriptor(v interface{}) bool {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return false
	}
	_, hasCommand := obj["command"]
	_, hasURL := obj["url"]
	return hasCommand || hasURL
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("unexpected token %v", tok)
	}
	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func skipValue(dec *json.Decoder) error {
	var skip json.RawMessage
	return dec.Decode(&skip)
}
