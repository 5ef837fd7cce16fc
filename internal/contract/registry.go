package contract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ErrContractNotFound is returned when no ABI is stored for an address.
var ErrContractNotFound = errors.New("contract not found")

// ErrInvalidAddress is returned for strings that are not 20-byte hex addresses.
var ErrInvalidAddress = errors.New("invalid address")

// Entry is a stored contract ABI.
type Entry struct {
	Address string          `json:"address"`
	Name    string          `json:"name,omitempty"`
	ABI     json.RawMessage `json:"abi"`
	AddedAt time.Time       `json:"added_at"`
}

// Parsed returns the entry's ABI.
func (e *Entry) Parsed() (abi.ABI, error) {
	parsed, err := abi.JSON(bytes.NewReader(e.ABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parsing ABI for %s: %w", e.Address, err)
	}
	return parsed, nil
}

// Store keeps contract ABIs keyed by address in a JSON file.
// Address lookups ignore case.
type Store struct {
	path string

	mu        sync.RWMutex
	contracts map[string]*Entry // key: lower-case address
}

// NewStore creates a Store backed by the JSON file at path.
func NewStore(path string) *Store {
	return &Store{
		path:      path,
		contracts: make(map[string]*Entry),
	}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Load reads stored contracts from disk. A missing file is an empty store.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parsing %s: %w", s.path, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range entries {
		e := &entries[i]
		s.contracts[key(e.Address)] = e
	}
	return nil
}

// Save writes all contracts to disk, sorted by address.
func (s *Store) Save() error {
	entries := s.All()
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[i] = *e
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Add adds or replaces the ABI stored for address. The ABI must parse.
func (s *Store) Add(address, name string, abiJSON []byte) (*Entry, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	if err := validateABI(abiJSON); err != nil {
		return nil, err
	}

	e := &Entry{
		Address: common.HexToAddress(address).Hex(),
		Name:    name,
		ABI:     json.RawMessage(compact(abiJSON)),
		AddedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts[key(address)] = e
	return e, nil
}

// Get returns the entry stored for address.
func (s *Store) Get(address string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.contracts[key(address)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContractNotFound, address)
	}
	return e, nil
}

// All returns all stored contracts sorted by address.
func (s *Store) All() []*Entry {
	s.mu.RLock()
	out := make([]*Entry, 0, len(s.contracts))
	for _, e := range s.contracts {
		out = append(out, e)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return key(out[i].Address) < key(out[j].Address) })
	return out
}

// Remove deletes the entry stored for address.
func (s *Store) Remove(address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(address)
	if _, ok := s.contracts[k]; !ok {
		return fmt.Errorf("%w: %s", ErrContractNotFound, address)
	}
	delete(s.contracts, k)
	return nil
}

func key(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func compact(data []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return data
	}
	return buf.Bytes()
}
