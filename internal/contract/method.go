package contract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrMethodNotFound is returned when an ABI has no method of the given name.
var ErrMethodNotFound = errors.New("method not found")

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

type jsonParam struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ParseMethod builds a method from a human-readable signature such as
// "function balanceOf(address owner) view returns (uint256)". Without a
// returns clause the method has no outputs. Tuple parameters are not
// supported.
func ParseMethod(sig string) (abi.Method, error) {
	s := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(sig), "function "))
	open := strings.Index(s, "(")
	if open <= 0 {
		return abi.Method{}, fmt.Errorf("invalid signature %q: expected name(types...)", sig)
	}
	name := strings.TrimSpace(s[:open])
	if !identRe.MatchString(name) {
		return abi.Method{}, fmt.Errorf("invalid signature %q: bad function name %q", sig, name)
	}
	end := closingParen(s, open)
	if end < 0 {
		return abi.Method{}, fmt.Errorf("invalid signature %q: unbalanced parentheses", sig)
	}
	inputs, err := parseParamList(s[open+1 : end])
	if err != nil {
		return abi.Method{}, fmt.Errorf("invalid signature %q: %w", sig, err)
	}

	outputs := []jsonParam{}
	mutability := "nonpayable"
	rest := strings.TrimSpace(s[end+1:])
	for rest != "" {
		if after, ok := strings.CutPrefix(rest, "returns"); ok {
			after = strings.TrimSpace(after)
			if !strings.HasPrefix(after, "(") {
				return abi.Method{}, fmt.Errorf("invalid signature %q: returns needs a parameter list", sig)
			}
			rp := closingParen(after, 0)
			if rp < 0 {
				return abi.Method{}, fmt.Errorf("invalid signature %q: unbalanced parentheses", sig)
			}
			if outputs, err = parseParamList(after[1:rp]); err != nil {
				return abi.Method{}, fmt.Errorf("invalid signature %q: %w", sig, err)
			}
			rest = strings.TrimSpace(after[rp+1:])
			continue
		}
		word, tail, _ := strings.Cut(rest, " ")
		switch word {
		case "view", "pure", "payable", "nonpayable":
			mutability = word
		case "external", "public":
		default:
			return abi.Method{}, fmt.Errorf("invalid signature %q: unexpected %q", sig, word)
		}
		rest = strings.TrimSpace(tail)
	}

	raw, err := json.Marshal([]map[string]interface{}{{
		"type":            "function",
		"name":            name,
		"inputs":          inputs,
		"outputs":         outputs,
		"stateMutability": mutability,
	}})
	if err != nil {
		return abi.Method{}, err
	}
	parsed, err := abi.JSON(bytes.NewReader(raw))
	if err != nil {
		return abi.Method{}, fmt.Errorf("invalid signature %q: %w", sig, err)
	}
	return parsed.Methods[name], nil
}

func closingParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func parseParamList(s string) ([]jsonParam, error) {
	out := []jsonParam{}
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	for _, p := range splitParams(s) {
		parts := strings.Fields(p)
		if len(parts) == 0 {
			return nil, errors.New("empty parameter")
		}
		if strings.HasPrefix(parts[0], "(") || strings.HasPrefix(parts[0], "tuple") {
			return nil, errors.New("tuple parameters are not supported")
		}
		param := jsonParam{Type: parts[0]}
		if last := parts[len(parts)-1]; len(parts) > 1 && last != "memory" && last != "calldata" && last != "storage" {
			param.Name = last
		}
		out = append(out, param)
	}
	return out, nil
}

// FindMethod looks name up in a. Overloads are told apart by argument count.
func FindMethod(a abi.ABI, name string, nargs int) (abi.Method, error) {
	var named []abi.Method
	for _, m := range a.Methods {
		if m.RawName == name {
			named = append(named, m)
		}
	}
	if len(named) == 0 {
		return abi.Method{}, fmt.Errorf("%w: %s", ErrMethodNotFound, name)
	}
	sort.Slice(named, func(i, j int) bool { return named[i].Sig < named[j].Sig })

	var match []abi.Method
	for _, m := range named {
		if len(m.Inputs) == nargs {
			match = append(match, m)
		}
	}
	switch len(match) {
	case 1:
		return match[0], nil
	case 0:
		sigs := make([]string, len(named))
		for i, m := range named {
			sigs[i] = m.Sig
		}
		return abi.Method{}, fmt.Errorf("%s takes different arguments (%s), got %d", name, strings.Join(sigs, ", "), nargs)
	default:
		return abi.Method{}, fmt.Errorf("%s is overloaded with %d arguments; pass the full signature instead", name, nargs)
	}
}

// PackCall encodes a call to m, selector included. Arguments are given as
// text and converted to the parameter types: decimal or 0x integers, 0x hex
// for bytes, true/false, and [a,b] lists for arrays.
func PackCall(m abi.Method, args []string) ([]byte, error) {
	if len(args) != len(m.Inputs) {
		return nil, fmt.Errorf("%s expects %d arguments, got %d", m.Sig, len(m.Inputs), len(args))
	}
	vals := make([]interface{}, len(args))
	for i, in := range m.Inputs {
		v, err := parseArg(in.Type, args[i])
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s): %w", i, in.Type, err)
		}
		vals[i] = v
	}
	packed, err := m.Inputs.Pack(vals...)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", m.Sig, err)
	}
	return append(append([]byte{}, m.ID...), packed...), nil
}

func parseArg(t abi.Type, s string) (interface{}, error) {
	s = strings.TrimSpace(s)
	switch t.T {
	case abi.AddressTy:
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		return common.HexToAddress(s), nil
	case abi.BoolTy:
		return strconv.ParseBool(s)
	case abi.StringTy:
		if unq, err := strconv.Unquote(s); err == nil {
			return unq, nil
		}
		return s, nil
	case abi.BytesTy:
		return hexutil.Decode(s)
	case abi.FixedBytesTy:
		b, err := hexutil.Decode(s)
		if err != nil {
			return nil, err
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("want %d bytes, got %d", t.Size, len(b))
		}
		v := reflect.New(t.GetType()).Elem()
		reflect.Copy(v, reflect.ValueOf(b))
		return v.Interface(), nil
	case abi.UintTy, abi.IntTy:
		return parseInt(t, s)
	case abi.SliceTy, abi.ArrayTy:
		if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
			return nil, fmt.Errorf("want a [a,b,...] list, got %q", s)
		}
		var parts []string
		if body := strings.TrimSpace(s[1 : len(s)-1]); body != "" {
			parts = splitList(body)
		}
		var v reflect.Value
		if t.T == abi.SliceTy {
			v = reflect.MakeSlice(t.GetType(), len(parts), len(parts))
		} else {
			if len(parts) != t.Size {
				return nil, fmt.Errorf("want %d elements, got %d", t.Size, len(parts))
			}
			v = reflect.New(t.GetType()).Elem()
		}
		for i, p := range parts {
			e, err := parseArg(*t.Elem, p)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			v.Index(i).Set(reflect.ValueOf(e))
		}
		return v.Interface(), nil
	}
	return nil, fmt.Errorf("unsupported parameter type %s", t)
}

func parseInt(t abi.Type, s string) (interface{}, error) {
	n, ok := new(big.Int).SetString(s, 0)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	if t.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return nil, fmt.Errorf("%s out of range for %s", s, t)
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		if n.Cmp(limit) >= 0 || n.Cmp(new(big.Int).Neg(limit)) < 0 {
			return nil, fmt.Errorf("%s out of range for %s", s, t)
		}
	}
	if t.Size > 64 {
		return n, nil
	}
	v := reflect.New(t.GetType()).Elem()
	if t.T == abi.UintTy {
		v.SetUint(n.Uint64())
	} else {
		v.SetInt(n.Int64())
	}
	return v.Interface(), nil
}

// splitList splits list elements on top-level commas, nested [] included.
func splitList(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

// UnpackResult decodes eth_call return data against m's outputs.
func UnpackResult(m abi.Method, data []byte) ([]Arg, error) {
	if len(m.Outputs) == 0 {
		return nil, nil
	}
	vals, err := m.Outputs.Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s result: %w", m.Name, err)
	}
	args := make([]Arg, len(vals))
	for i, v := range vals {
		out := m.Outputs[i]
		args[i] = Arg{Name: argName(out.Name, i), Type: out.Type.String(), Value: FormatValue(v)}
	}
	return args, nil
}
