// Package protocol registers the supported telemetry protocol families and
// resolves which family should decode a given capture.
//
// Families register themselves at init time under a short name. The caller
// either names the family explicitly or lets Infer pick one from the
// fixed-offset signature tests the families registered.
package protocol

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oceanum/ensemble/diag"
	"github.com/oceanum/ensemble/errs"
	"github.com/oceanum/ensemble/internal/capacity"
	"github.com/oceanum/ensemble/series"
	"github.com/oceanum/ensemble/source"
)

// Config carries the caller-tunable decode parameters shared by all
// families. The zero value selects the documented defaults.
type Config struct {
	// NominalInterval is the declared sampling interval. Zero lets the
	// resynchroniser estimate it as the mode of observed deltas.
	NominalInterval time.Duration

	// ResyncWindow bounds the forward search for a replacement frame start,
	// in bytes. Zero derives a default from the frame length.
	ResyncWindow int

	// MaxResyncPasses bounds repair iterations. Zero means the default.
	MaxResyncPasses int

	// Estimator supplies the memory budget for the vectorised decode
	// intermediate. Nil uses capacity.Default().
	Estimator capacity.Estimator
}

// Normalize fills nil/zero fields with defaults.
func (c Config) Normalize() Config {
	if c.Estimator == nil {
		c.Estimator = capacity.Default()
	}

	return c
}

// Decoder decodes one capture buffer into a columnar series plus the
// accumulated frame diagnostics.
type Decoder interface {
	Name() string
	Decode(buf *source.Buffer) (*series.Series, diag.List, error)
}

// NewDecoderFunc constructs a family decoder for one decode configuration.
type NewDecoderFunc func(cfg Config) Decoder

// SniffFunc reports whether the buffer's fixed-offset signature matches the
// family.
type SniffFunc func(data []byte) bool

type entry struct {
	newDecoder NewDecoderFunc
	sniff      SniffFunc
}

var (
	familyMutex sync.Mutex
	families    = make(map[string]entry)
)

// Register records a protocol family under name. It panics when the name is
// already taken or either function is nil; registration is an init-time
// programming contract, not a runtime condition.
func Register(name string, newDecoder NewDecoderFunc, sniff SniffFunc) {
	familyMutex.Lock()
	defer familyMutex.Unlock()

	if newDecoder == nil || sniff == nil {
		panic("protocol: nil registration for " + name)
	}
	if _, dup := families[name]; dup {
		panic(fmt.Sprintf("protocol: family already registered (%s)", name))
	}
	families[name] = entry{newDecoder: newDecoder, sniff: sniff}
}

// New constructs the named family's decoder.
func New(name string, cfg Config) (Decoder, error) {
	familyMutex.Lock()
	defer familyMutex.Unlock()

	e, ok := families[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errs.ErrUnknownProtocol, name)
	}

	return e.newDecoder(cfg.Normalize()), nil
}

// Infer matches the buffer's leading bytes against the registered signature
// tests, in lexical family order for determinism.
func Infer(data []byte) (string, error) {
	for _, name := range Names() {
		familyMutex.Lock()
		e := families[name]
		familyMutex.Unlock()

		if e.sniff(data) {
			return name, nil
		}
	}

	return "", fmt.Errorf("%w: no signature matched", errs.ErrUnknownProtocol)
}

// Names lists the registered families, sorted.
func Names() []string {
	familyMutex.Lock()
	defer familyMutex.Unlock()

	names := make([]string, 0, len(families))
	for name := range families {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}
