package contract

import (
	"bytes"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/hashicorp/go-multierror"
)

// Kind says how much of a call or log the decoder understood.
type Kind int

const (
	KindTransfer Kind = iota // no calldata: plain value transfer
	KindMethod               // name and arguments decoded from an ABI
	KindKnown                // name recognised, arguments not decoded
	KindUnknown              // nothing matched; only the selector or topic is known
)

func (k Kind) String() string {
	switch k {
	case KindTransfer:
		return "transfer"
	case KindMethod:
		return "method"
	case KindKnown:
		return "known"
	default:
		return "unknown"
	}
}

// Arg is one decoded argument rendered as text.
type Arg struct {
	Name    string
	Type    string
	Value   string
	Indexed bool
}

// Call is decoded calldata.
type Call struct {
	Kind      Kind
	Selector  string // 0x-prefixed 4-byte selector, empty for transfers
	Name      string
	Signature string
	Args      []Arg
	Err       error // set when a matching ABI entry failed to decode the arguments
}

// String renders the call as name(arg: value, ...).
func (c Call) String() string {
	switch c.Kind {
	case KindTransfer:
		return "Transfer"
	case KindUnknown:
		return c.Selector
	}
	return c.Name + "(" + joinArgs(c.Args) + ")"
}

// Event is a decoded log.
type Event struct {
	Kind      Kind // KindMethod when arguments decoded, KindKnown or KindUnknown otherwise
	Address   string
	Topic     string
	Name      string
	Signature string
	Args      []Arg
	Err       error
}

// String renders the event as Name(arg: value, ...).
func (e Event) String() string {
	if e.Kind == KindUnknown {
		return "Unknown"
	}
	return e.Name + "(" + joinArgs(e.Args) + ")"
}

type methodEntry struct {
	name   string
	sig    string
	decode func(data []byte) ([]Arg, error) // nil for name-only entries
}

type eventEntry struct {
	name   string
	sig    string
	layout string // sig plus which inputs are indexed
	decode func(l *types.Log) ([]Arg, error) // nil for name-only entries
}

// Decoder maps selectors and topic0 hashes to decode functions. ABIs added for
// a specific address take precedence for calls to and logs from that address.
// It is safe for concurrent use.
type Decoder struct {
	mu        sync.RWMutex
	methods   map[string]methodEntry
	events    map[common.Hash][]eventEntry
	contracts map[common.Address]abi.ABI
}

// NewDecoder returns a decoder preloaded with the built-in ABIs and the
// well-known selector and event names.
func NewDecoder() *Decoder {
	d := &Decoder{
		methods:   make(map[string]methodEntry),
		events:    make(map[common.Hash][]eventEntry),
		contracts: make(map[common.Address]abi.ABI),
	}
	for sel, name := range knownMethods {
		d.methods[sel] = methodEntry{name: name}
	}
	for _, sig := range knownEvents {
		d.events[EventTopic(sig)] = []eventEntry{{name: sig[:strings.Index(sig, "(")], sig: sig}}
	}
	for _, b := range AllBuiltins() {
		// Built-in ABIs are constants; a parse failure is a programming error.
		if err := d.AddABIJSON([]byte(b.ABI)); err != nil {
			panic(fmt.Sprintf("builtin %s: %v", b.ID, err))
		}
	}
	return d
}

// AddABIJSON parses data and adds every method and event to the global tables.
func (d *Decoder) AddABIJSON(data []byte) error {
	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parsing ABI: %w", err)
	}
	d.AddABI(parsed)
	return nil
}

// AddABI adds every method and event of a to the global tables, replacing
// earlier entries for the same selector or event layout.
func (d *Decoder) AddABI(a abi.ABI) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addLocked(a, true)
}

// AddContract registers the ABI of the contract at address. Its entries also
// fill gaps in the global tables but never replace what is already there.
func (d *Decoder) AddContract(address common.Address, a abi.ABI) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.contracts[address] = a
	d.addLocked(a, false)
}

func (d *Decoder) addLocked(a abi.ABI, replace bool) {
	for _, m := range a.Methods {
		sel := hexutil.Encode(m.ID)
		if cur, ok := d.methods[sel]; ok && cur.decode != nil && !replace {
			continue
		}
		d.methods[sel] = methodFor(m)
	}
	for _, ev := range a.Events {
		if ev.Anonymous {
			continue
		}
		entry := eventFor(ev)
		kept := make([]eventEntry, 0, len(d.events[ev.ID])+1)
		exists := false
		for _, e := range d.events[ev.ID] {
			switch {
			case e.decode == nil:
				// superseded by a decoding entry
			case e.layout == entry.layout && replace:
				// replaced by entry
			case e.layout == entry.layout:
				exists = true
				kept = append(kept, e)
			default:
				kept = append(kept, e)
			}
		}
		if !exists {
			kept = append(kept, entry)
		}
		d.events[ev.ID] = kept
	}
}

// LoadStore registers every ABI in s. Entries that fail to parse are
// returned as a combined error after the rest have been added.
func (d *Decoder) LoadStore(s *Store) error {
	var result *multierror.Error
	for _, e := range s.All() {
		parsed, err := e.Parsed()
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		d.AddContract(common.HexToAddress(e.Address), parsed)
	}
	return result.ErrorOrNil()
}

// DecodeCall decodes input sent to the contract at to. to may be empty.
func (d *Decoder) DecodeCall(to, input string) Call {
	if input == "" || input == "0x" {
		return Call{Kind: KindTransfer, Name: "Transfer"}
	}
	data, err := hexutil.Decode(input)
	if err != nil {
		return Call{Kind: KindUnknown, Selector: input, Err: fmt.Errorf("invalid calldata: %w", err)}
	}
	if len(data) < 4 {
		return Call{Kind: KindUnknown, Selector: hexutil.Encode(data)}
	}
	sel := hexutil.Encode(data[:4])

	d.mu.RLock()
	entry, ok := d.methodFor(to, data[:4], sel)
	d.mu.RUnlock()

	if !ok {
		return Call{Kind: KindUnknown, Selector: sel}
	}
	call := Call{Kind: KindKnown, Selector: sel, Name: entry.name, Signature: entry.sig}
	if entry.decode == nil {
		return call
	}
	args, err := entry.decode(data[4:])
	if err != nil {
		call.Err = err
		return call
	}
	call.Kind = KindMethod
	call.Args = args
	return call
}

func (d *Decoder) methodFor(to string, id []byte, sel string) (methodEntry, bool) {
	if common.IsHexAddress(to) {
		if a, ok := d.contracts[common.HexToAddress(to)]; ok {
			if m, err := a.MethodById(id); err == nil {
				return methodFor(*m), true
			}
		}
	}
	entry, ok := d.methods[sel]
	return entry, ok
}

// DecodeLog decodes an event log. Logs without topics are anonymous and
// always decode as unknown.
func (d *Decoder) DecodeLog(l *types.Log) Event {
	ev := Event{Kind: KindUnknown, Address: l.Address.Hex(), Name: "Unknown"}
	if len(l.Topics) == 0 {
		return ev
	}
	topic := l.Topics[0]
	ev.Topic = topic.Hex()

	d.mu.RLock()
	candidates := d.eventsFor(l.Address, topic)
	d.mu.RUnlock()

	var lastErr error
	for _, c := range candidates {
		if c.decode == nil {
			ev.Kind, ev.Name, ev.Signature = KindKnown, c.name, c.sig
			continue
		}
		args, err := c.decode(l)
		if err != nil {
			lastErr = err
			continue
		}
		return Event{Kind: KindMethod, Address: ev.Address, Topic: ev.Topic, Name: c.name, Signature: c.sig, Args: args}
	}
	if lastErr != nil && ev.Kind == KindUnknown {
		ev.Kind, ev.Name, ev.Signature = KindKnown, candidates[0].name, candidates[0].sig
		ev.Err = lastErr
	}
	return ev
}

func (d *Decoder) eventsFor(address common.Address, topic common.Hash) []eventEntry {
	var out []eventEntry
	if a, ok := d.contracts[address]; ok {
		if e, err := a.EventByID(topic); err == nil {
			out = append(out, eventFor(*e))
		}
	}
	return append(out, d.events[topic]...)
}

func methodFor(m abi.Method) methodEntry {
	return methodEntry{
		name: m.RawName,
		sig:  m.Sig,
		decode: func(data []byte) ([]Arg, error) {
			values, err := m.Inputs.Unpack(data)
			if err != nil {
				return nil, fmt.Errorf("decoding %s arguments: %w", m.Sig, err)
			}
			args := make([]Arg, len(values))
			for i, v := range values {
				in := m.Inputs[i]
				args[i] = Arg{Name: argName(in.Name, i), Type: in.Type.String(), Value: FormatValue(v)}
			}
			return args, nil
		},
	}
}

func eventFor(ev abi.Event) eventEntry {
	var layout strings.Builder
	layout.WriteString(ev.Sig)
	layout.WriteByte('/')
	for _, in := range ev.Inputs {
		if in.Indexed {
			layout.WriteByte('i')
		} else {
			layout.WriteByte('d')
		}
	}
	return eventEntry{
		name:   ev.RawName,
		sig:    ev.Sig,
		layout: layout.String(),
		decode: func(l *types.Log) ([]Arg, error) {
			return decodeEvent(ev, l)
		},
	}
}

func decodeEvent(ev abi.Event, l *types.Log) ([]Arg, error) {
	indexed := 0
	for _, in := range ev.Inputs {
		if in.Indexed {
			indexed++
		}
	}
	if len(l.Topics)-1 != indexed {
		return nil, fmt.Errorf("%s: expected %d indexed topics, got %d", ev.Sig, indexed, len(l.Topics)-1)
	}

	values, err := ev.Inputs.NonIndexed().Unpack(l.Data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s data: %w", ev.Sig, err)
	}

	args := make([]Arg, 0, len(ev.Inputs))
	ti, vi := 1, 0
	for i, in := range ev.Inputs {
		arg := Arg{Name: argName(in.Name, i), Type: in.Type.String(), Indexed: in.Indexed}
		if in.Indexed {
			v, err := topicValue(in, l.Topics[ti])
			if err != nil {
				return nil, fmt.Errorf("decoding %s topic %d: %w", ev.Sig, ti, err)
			}
			arg.Value = v
			ti++
		} else {
			arg.Value = FormatValue(values[vi])
			vi++
		}
		args = append(args, arg)
	}
	return args, nil
}

// topicValue decodes an indexed argument. Dynamic types are stored as their
// keccak hash, which is returned as is.
func topicValue(in abi.Argument, topic common.Hash) (string, error) {
	switch in.Type.T {
	case abi.StringTy, abi.BytesTy, abi.SliceTy, abi.ArrayTy, abi.TupleTy:
		return topic.Hex(), nil
	}
	field := in
	field.Name = "v"
	out := make(map[string]interface{}, 1)
	if err := abi.ParseTopicsIntoMap(out, abi.Arguments{field}, []common.Hash{topic}); err != nil {
		return "", err
	}
	return FormatValue(out["v"]), nil
}

func argName(name string, i int) string {
	if name == "" {
		return "arg" + strconv.Itoa(i)
	}
	return name
}

// FormatValue renders a decoded ABI value: addresses and hashes as hex,
// integers in decimal, byte strings as 0x-prefixed hex.
func FormatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case common.Address:
		return x.Hex()
	case common.Hash:
		return x.Hex()
	case []byte:
		return hexutil.Encode(x)
	case *big.Int:
		return x.String()
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			return hexutil.Encode(b)
		}
		return formatList(rv)
	case reflect.Slice:
		return formatList(rv)
	}
	return fmt.Sprint(v)
}

func formatList(rv reflect.Value) string {
	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = FormatValue(rv.Index(i).Interface())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func joinArgs(args []Arg) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Name + ": " + a.Value
	}
	return strings.Join(parts, ", ")
}
