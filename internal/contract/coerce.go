package contract

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	xerrors "OpenMCP-EVM/internal/errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseABI accepts a JSON array of ABI entries, or a JSON string holding one.
func ParseABI(raw json.RawMessage) (abi.ABI, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return abi.ABI{}, invalidArgument("abi is required")
	}
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return abi.ABI{}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "abi string is not valid JSON")
		}
		trimmed = inner
	}
	parsed, err := abi.JSON(strings.NewReader(trimmed))
	if err != nil {
		return abi.ABI{}, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "invalid abi")
	}
	return parsed, nil
}

// CoerceArgs converts JSON-decoded values into the Go types the ABI packer
// expects for each input.
func CoerceArgs(inputs abi.Arguments, values []any) ([]any, error) {
	if len(values) != len(inputs) {
		return nil, invalidArgument(fmt.Sprintf("expected %d arguments, got %d", len(inputs), len(values)))
	}
	out := make([]any, len(values))
	for i, input := range inputs {
		v, err := coerce(input.Type, values[i])
		if err != nil {
			name := input.Name
			if name == "" {
				name = strconv.Itoa(i)
			}
			return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "argument "+name+" ("+input.Type.String()+")")
		}
		out[i] = v.Interface()
	}
	return out, nil
}

func coerce(t abi.Type, value any) (reflect.Value, error) {
	switch t.T {
	case abi.AddressTy:
		s, ok := value.(string)
		if !ok || !common.IsHexAddress(strings.TrimSpace(s)) {
			return reflect.Value{}, fmt.Errorf("expected hex address, got %v", value)
		}
		return reflect.ValueOf(common.HexToAddress(strings.TrimSpace(s))), nil

	case abi.BoolTy:
		switch b := value.(type) {
		case bool:
			return reflect.ValueOf(b), nil
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(b))
			if err != nil {
				return reflect.Value{}, fmt.Errorf("expected bool, got %q", b)
			}
			return reflect.ValueOf(parsed), nil
		}
		return reflect.Value{}, fmt.Errorf("expected bool, got %v", value)

	case abi.StringTy:
		s, ok := value.(string)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected string, got %v", value)
		}
		return reflect.ValueOf(s), nil

	case abi.UintTy, abi.IntTy:
		n, err := toBigInt(value)
		if err != nil {
			return reflect.Value{}, err
		}
		return integerValue(t, n)

	case abi.BytesTy:
		b, err := toBytes(value)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(b), nil

	case abi.FixedBytesTy:
		b, err := toBytes(value)
		if err != nil {
			return reflect.Value{}, err
		}
		if len(b) > t.Size {
			return reflect.Value{}, fmt.Errorf("expected at most %d bytes, got %d", t.Size, len(b))
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr, nil

	case abi.SliceTy, abi.ArrayTy:
		items, ok := value.([]any)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected array, got %v", value)
		}
		if t.T == abi.ArrayTy && len(items) != t.Size {
			return reflect.Value{}, fmt.Errorf("expected %d elements, got %d", t.Size, len(items))
		}
		var container reflect.Value
		if t.T == abi.SliceTy {
			container = reflect.MakeSlice(t.GetType(), len(items), len(items))
		} else {
			container = reflect.New(t.GetType()).Elem()
		}
		for i, item := range items {
			elem, err := coerce(*t.Elem, item)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			container.Index(i).Set(elem)
		}
		return container, nil

	case abi.TupleTy:
		fields, ok := value.(map[string]any)
		if !ok {
			return reflect.Value{}, fmt.Errorf("expected object, got %v", value)
		}
		tuple := reflect.New(t.GetType()).Elem()
		for i, elem := range t.TupleElems {
			raw, ok := fields[t.TupleRawNames[i]]
			if !ok {
				return reflect.Value{}, fmt.Errorf("missing tuple field %s", t.TupleRawNames[i])
			}
			v, err := coerce(*elem, raw)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("field %s: %w", t.TupleRawNames[i], err)
			}
			tuple.Field(i).Set(v)
		}
		return tuple, nil
	}
	return reflect.Value{}, fmt.Errorf("unsupported abi type %s", t.String())
}

func toBigInt(value any) (*big.Int, error) {
	switch v := value.(type) {
	case string:
		s := strings.TrimSpace(v)
		n, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return nil, fmt.Errorf("expected integer, got %q", v)
		}
		return n, nil
	case json.Number:
		n, ok := new(big.Int).SetString(v.String(), 10)
		if !ok {
			return nil, fmt.Errorf("expected integer, got %s", v)
		}
		return n, nil
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > 1<<53 {
			return nil, fmt.Errorf("number %v is not an exact integer, pass it as a string", v)
		}
		return big.NewInt(int64(v)), nil
	case int:
		return big.NewInt(int64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case *big.Int:
		return new(big.Int).Set(v), nil
	}
	return nil, fmt.Errorf("expected integer, got %v", value)
}

// integerValue narrows n to the exact Go type the packer wants: fixed-width
// ints up to 64 bits and *big.Int above.
func integerValue(t abi.Type, n *big.Int) (reflect.Value, error) {
	if t.T == abi.UintTy {
		if n.Sign() < 0 {
			return reflect.Value{}, fmt.Errorf("negative value %s for %s", n, t.String())
		}
		if n.BitLen() > t.Size {
			return reflect.Value{}, fmt.Errorf("value %s overflows %s", n, t.String())
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
			return reflect.Value{}, fmt.Errorf("value %s overflows %s", n, t.String())
		}
	}
	goType := t.GetType()
	if goType == reflect.TypeOf(&big.Int{}) {
		return reflect.ValueOf(n), nil
	}
	v := reflect.New(goType).Elem()
	if t.T == abi.UintTy {
		v.SetUint(n.Uint64())
	} else {
		v.SetInt(n.Int64())
	}
	return v, nil
}

func toBytes(value any) ([]byte, error) {
	s, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("expected 0x-prefixed hex, got %v", value)
	}
	b, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("expected 0x-prefixed hex: %w", err)
	}
	return b, nil
}

func invalidArgument(message string) error {
	return xerrors.New(xerrors.CodeInvalidArgument, message)
}
