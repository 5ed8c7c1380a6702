package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"editbot/internal/duration"
)

// Decode strictly decodes a config document: unknown fields and trailing data
// are errors. The extension of name picks JSON or YAML. Environment
// overrides are applied last.
func Decode(name string, b []byte) (*Config, error) {
	jb, err := toJSON(name, b)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(name), err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode %s: trailing data after config", filepath.Base(name))
	}
	applyEnv(&cfg)
	return &cfg, nil
}

type fileFormat int

const (
	formatJSON fileFormat = iota
	formatYAML
)

func formatOf(name string) fileFormat {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return formatYAML
	}
	return formatJSON
}

// toJSON returns b as JSON so both formats go through the same strict decoder.
func toJSON(name string, b []byte) ([]byte, error) {
	if formatOf(name) == formatJSON {
		return b, nil
	}
	var doc any
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml %s: %w", filepath.Base(name), err)
	}
	out, err := json.Marshal(jsonable(doc))
	if err != nil {
		return nil, fmt.Errorf("convert yaml %s: %w", filepath.Base(name), err)
	}
	return out, nil
}

// jsonable rewrites non-string map keys (yaml allows `1: x`) in place.
func jsonable(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = jsonable(e)
		}
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, e := range t {
			m[fmt.Sprint(k)] = jsonable(e)
		}
		return m
	case []any:
		for i, e := range t {
			t[i] = jsonable(e)
		}
	}
	return v
}

// chatSpan is the "1w2d" syntax chat users type; config accepts it next to
// Go duration strings so retention can read "30d".
var chatSpan = regexp.MustCompile(`^(?:[0-9]+(?:\.[0-9]+)?[ywdhms])+$`)

// ParseDurationField parses a config duration. Empty means zero; negative
// values are rejected. path names the field in errors.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		if !chatSpan.MatchString(strings.ToLower(s)) {
			return 0, fmt.Errorf("%s: invalid duration %s", path, strconv.Quote(raw))
		}
		span, perr := duration.Parse(s)
		if perr != nil {
			return 0, fmt.Errorf("%s: %w", path, perr)
		}
		d = span.Std()
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: negative duration %s", path, s)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def standing in for
// empty or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	switch {
	case err != nil:
		return 0, err
	case d == 0:
		return def, nil
	}
	return d, nil
}
