package file

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Codec converts between the on-disk format and a key/value map.
type Codec interface {
	Decode(r io.Reader) (map[string]string, error)
	Encode(w io.Writer, m map[string]string) error
}

// Lines stores one "key|value" entry per line. Lines without a separator
// or with an empty key are skipped, and a key seen twice keeps its last
// value, so append-only logs written by older tools still load.
type Lines struct{}

func (Lines) Decode(r io.Reader) (map[string]string, error) {
	m := make(map[string]string)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		k, v, ok := strings.Cut(strings.TrimSpace(sc.Text()), "|")
		if !ok || k == "" {
			continue
		}
		m[k] = v
	}
	return m, sc.Err()
}

func (Lines) Encode(w io.Writer, m map[string]string) error {
	bw := bufio.NewWriter(w)
	for _, k := range sortedKeys(m) {
		if _, err := fmt.Fprintf(bw, "%s|%s\n", k, m[k]); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// JSON stores a single object. Integer values are written as JSON numbers,
// everything else as strings.
type JSON struct{}

func (JSON) Decode(r io.Reader) (map[string]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	if len(bytes.TrimSpace(data)) == 0 {
		return m, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode json state: %w", err)
	}
	for k, v := range raw {
		switch vv := v.(type) {
		case string:
			m[k] = vv
		case json.Number:
			m[k] = vv.String()
		default:
			return nil, fmt.Errorf("decode json state: key %q has unsupported value %v", k, v)
		}
	}
	return m, nil
}

func (JSON) Encode(w io.Writer, m map[string]string) error {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if _, err := strconv.ParseInt(v, 10, 64); err == nil {
			out[k] = json.Number(v)
		} else {
			out[k] = v
		}
	}
	return json.NewEncoder(w).Encode(out)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
