package tools

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	xerrors "OpenMCP-EVM/internal/errors"
)

// Args holds validated call arguments. Numeric values arrive as json.Number
// when the host decodes with UseNumber, or float64 otherwise.
type Args map[string]any

func bindArgs(params []Param, raw map[string]any) (Args, error) {
	args := make(Args, len(raw))
	for _, p := range params {
		v, present := raw[p.Name]
		if !present || v == nil {
			if p.Required {
				return nil, xerrors.New(xerrors.CodeInvalidArgument, "missing required parameter: "+p.Name,
					xerrors.WithMetadata("parameter", p.Name))
			}
			continue
		}
		if s, ok := v.(string); ok && p.Required && strings.TrimSpace(s) == "" {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "missing required parameter: "+p.Name,
				xerrors.WithMetadata("parameter", p.Name))
		}
		if !accepts(p.Type, v) {
			return nil, xerrors.New(xerrors.CodeInvalidArgument, "parameter "+p.Name+" must be a "+string(p.Type),
				xerrors.WithMetadata("parameter", p.Name))
		}
		args[p.Name] = v
	}
	return args, nil
}

// accepts is lenient between strings and numbers: decimal amounts are
// declared as strings but clients often send them as numbers, and the
// reverse happens for timestamps.
func accepts(t ParamType, v any) bool {
	switch t {
	case TypeString, TypeNumber:
		switch v.(type) {
		case string, json.Number, float64, int, int64:
			return true
		}
		return false
	case TypeBoolean:
		switch b := v.(type) {
		case bool:
			return true
		case string:
			_, err := strconv.ParseBool(b)
			return err == nil
		}
		return false
	case TypeArray:
		switch v.(type) {
		case []any, string:
			return true
		}
		return false
	case TypeObject:
		_, ok := v.(map[string]any)
		return ok
	}
	return true
}

// String returns the named argument as a string, or "" when absent.
func (a Args) String(name string) string {
	switch v := a[name].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// StringOr returns the named argument, or def when absent or blank.
func (a Args) StringOr(name, def string) string {
	if s := a.String(name); s != "" {
		return s
	}
	return def
}

// Int64 parses the named argument as an integer.
func (a Args) Int64(name string) (int64, error) {
	switch v := a[name].(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, xerrors.New(xerrors.CodeInvalidArgument, "parameter "+name+" must be an integer")
		}
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	}
	n, err := strconv.ParseInt(a.String(name), 10, 64)
	if err != nil {
		return 0, xerrors.New(xerrors.CodeInvalidArgument, "parameter "+name+" must be an integer")
	}
	return n, nil
}

// Slice returns an array argument. A string holding a JSON array is decoded.
func (a Args) Slice(name string) ([]any, error) {
	switch v := a[name].(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	case string:
		var out []any
		dec := json.NewDecoder(strings.NewReader(v))
		dec.UseNumber()
		if err := dec.Decode(&out); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "parameter "+name+" must be a JSON array")
		}
		return out, nil
	}
	return nil, xerrors.New(xerrors.CodeInvalidArgument, "parameter "+name+" must be an array")
}

// Raw re-encodes the named argument as JSON.
func (a Args) Raw(name string) (json.RawMessage, error) {
	v, ok := a[name]
	if !ok {
		return nil, nil
	}
	encoded, err := json.Marshal(v)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "parameter "+name+" is not valid JSON")
	}
	return encoded, nil
}
