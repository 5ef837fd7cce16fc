// Package sync imports contract ABIs listed in a deployments manifest into the
// ABI store.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Mohsinsiddi/w3scan/internal/contract"
)

// ErrNoEntries is returned when the manifest has nothing for the requested network.
var ErrNoEntries = errors.New("manifest has no contracts for this network")

// Manifest is the structure of a deployments.json manifest:
//
//	{"contracts": {"<name>": {"<network>": {"address": "0x…", "abi_url": "…"}}}}
type Manifest struct {
	Contracts map[string]map[string]ManifestEntry `json:"contracts"`
}

// ManifestEntry is a single contract deployment entry. The ABI is either
// inline or fetched from ABIUrl (http(s) URL or local path).
type ManifestEntry struct {
	Address string          `json:"address"`
	ABIUrl  string          `json:"abi_url,omitempty"`
	ABI     json.RawMessage `json:"abi,omitempty"`
}

// Store is where imported ABIs go.
type Store interface {
	Add(address, name string, abiJSON []byte) (*contract.Entry, error)
	Save() error
}

// Report lists what one Run imported.
type Report struct {
	Imported []string // "<name> (<network>)" in sorted order
	Failed   int
}

// Syncer imports manifest entries into a Store.
type Syncer struct {
	store    Store
	client   *http.Client
	log      zerolog.Logger
	parallel int
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets the logger used for skipped entries.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Syncer) { s.log = log.With().Str("component", "sync").Logger() }
}

// WithHTTPClient replaces the default client (15s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(s *Syncer) { s.client = c }
}

// New creates a Syncer writing into store.
func New(store Store, opts ...Option) *Syncer {
	s := &Syncer{
		store:    store,
		client:   &http.Client{Timeout: 15 * time.Second},
		log:      zerolog.Nop(),
		parallel: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type job struct {
	name, network string
	entry         ManifestEntry
	abi           []byte
	err           error
}

// Run reads the manifest at source and imports every entry for network. An
// empty network imports all of them. ABIs are fetched concurrently; entries
// that fail are skipped and returned together as a multierror while the
// rest are still saved.
func (s *Syncer) Run(ctx context.Context, source, network string) (*Report, error) {
	body, err := s.read(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	jobs := selectEntries(m, network)
	if len(jobs) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoEntries, network)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallel)
	for _, j := range jobs {
		g.Go(func() error {
			j.abi, j.err = s.loadABI(gctx, j.entry)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{}
	var result *multierror.Error
	for _, j := range jobs {
		label := fmt.Sprintf("%s (%s)", j.name, j.network)
		if j.err == nil {
			_, j.err = s.store.Add(j.entry.Address, j.name, j.abi)
		}
		if j.err != nil {
			s.log.Warn().Err(j.err).Str("contract", label).Msg("skipping manifest entry")
			result = multierror.Append(result, fmt.Errorf("%s: %w", label, j.err))
			report.Failed++
			continue
		}
		report.Imported = append(report.Imported, label)
	}

	if len(report.Imported) > 0 {
		if err := s.store.Save(); err != nil {
			return nil, fmt.Errorf("saving ABI store: %w", err)
		}
	}
	return report, result.ErrorOrNil()
}

// selectEntries flattens the manifest into jobs sorted by name then network.
func selectEntries(m Manifest, network string) []*job {
	var jobs []*job
	for name, networks := range m.Contracts {
		for net, entry := range networks {
			if network != "" && !strings.EqualFold(net, network) {
				continue
			}
			jobs = append(jobs, &job{name: name, network: net, entry: entry})
		}
	}
	sort.Slice(jobs, func(i, k int) bool {
		if jobs[i].name != jobs[k].name {
			return jobs[i].name < jobs[k].name
		}
		return jobs[i].network < jobs[k].network
	})
	return jobs
}

func (s *Syncer) loadABI(ctx context.Context, e ManifestEntry) ([]byte, error) {
	data := []byte(e.ABI)
	if len(data) == 0 {
		if e.ABIUrl == "" {
			return nil, errors.New("entry has neither abi nor abi_url")
		}
		var err error
		if data, err = s.read(ctx, e.ABIUrl); err != nil {
			return nil, err
		}
	}
	return contract.ParseABI(data)
}

// read loads an http(s) URL or a local file.
func (s *Syncer) read(ctx context.Context, loc string) ([]byte, error) {
	if !strings.HasPrefix(loc, "http://") && !strings.HasPrefix(loc, "https://") {
		return os.ReadFile(loc)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", loc, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 8<<20))
}
