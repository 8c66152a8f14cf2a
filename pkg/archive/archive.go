// Package archive writes exported diagram documents to durable storage.
//
// A snapshot is the canonical JSON export, optionally snappy compressed,
// stored under <diagram id>/<UTC timestamp>.json[.sz]. Sinks only move bytes;
// naming and compression happen here so every sink lays out keys the same way.
package archive

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dd0wney/cluso-bowtie/pkg/logging"
	"github.com/dd0wney/cluso-bowtie/pkg/metrics"
	"github.com/golang/snappy"
)

const (
	jsonExt   = ".json"
	snappyExt = ".sz"

	timeLayout = "20060102T150405.000000000Z"
)

var (
	// ErrEmptySnapshot is returned when there is nothing to archive
	ErrEmptySnapshot = errors.New("empty snapshot")
	// ErrInvalidKey is returned for keys that escape the archive root
	ErrInvalidKey = errors.New("invalid archive key")
)

// Sink stores opaque objects by key
type Sink interface {
	Put(ctx context.Context, key string, data []byte) error
	Name() string
}

// Receipt describes a stored snapshot
type Receipt struct {
	DiagramID  string    `json:"diagramId"`
	Key        string    `json:"key"`
	Sink       string    `json:"sink"`
	Size       int       `json:"size"`
	RawSize    int       `json:"rawSize"`
	Compressed bool      `json:"compressed"`
	Time       time.Time `json:"time"`
}

// Options configures an Archiver
type Options struct {
	Compress bool
	// Now is used for key timestamps; defaults to time.Now
	Now func() time.Time
}

// Archiver names, compresses and writes snapshots to a Sink
type Archiver struct {
	sink     Sink
	compress bool
	now      func() time.Time
	logger   logging.Logger
	metrics  *metrics.Registry
}

// New creates an Archiver over sink. Nil logger and registry are allowed.
func New(sink Sink, opts Options, logger logging.Logger, reg *metrics.Registry) *Archiver {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Archiver{
		sink:     sink,
		compress: opts.Compress,
		now:      now,
		logger:   logger.With(logging.Component("archive"), logging.String("sink", sink.Name())),
		metrics:  reg,
	}
}

// Sink returns the underlying sink
func (a *Archiver) Sink() Sink {
	return a.sink
}

// Pinger is implemented by sinks that can check their backend cheaply
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks the sink if it supports it
func (a *Archiver) Ping(ctx context.Context) error {
	if p, ok := a.sink.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Archive stores doc as a new snapshot of diagramID
func (a *Archiver) Archive(ctx context.Context, diagramID string, doc []byte) (Receipt, error) {
	if len(doc) == 0 {
		return Receipt{}, ErrEmptySnapshot
	}
	if err := checkSegment(diagramID); err != nil {
		return Receipt{}, err
	}

	start := time.Now()
	at := a.now().UTC()
	data := Encode(doc, a.compress)
	rcpt := Receipt{
		DiagramID:  diagramID,
		Key:        Key(diagramID, at, a.compress),
		Sink:       a.sink.Name(),
		Size:       len(data),
		RawSize:    len(doc),
		Compressed: a.compress,
		Time:       at,
	}

	err := a.sink.Put(ctx, rcpt.Key, data)
	elapsed := time.Since(start)
	if a.metrics != nil {
		a.metrics.RecordArchive(a.sink.Name(), len(data), elapsed, err)
	}
	if err != nil {
		a.logger.Error("archive failed",
			logging.DiagramID(diagramID),
			logging.String("key", rcpt.Key),
			logging.Error(err))
		return Receipt{}, fmt.Errorf("archive %s: %w", diagramID, err)
	}

	a.logger.Info("snapshot archived",
		logging.DiagramID(diagramID),
		logging.String("key", rcpt.Key),
		logging.Int("size", rcpt.Size),
		logging.Int("raw_size", rcpt.RawSize),
		logging.Latency(elapsed))
	return rcpt, nil
}

// Key builds the object key for a snapshot taken at t
func Key(diagramID string, t time.Time, compressed bool) string {
	name := t.UTC().Format(timeLayout) + jsonExt
	if compressed {
		name += snappyExt
	}
	return path.Join(diagramID, name)
}

// Encode compresses doc when compress is set
func Encode(doc []byte, compress bool) []byte {
	if !compress {
		return doc
	}
	return snappy.Encode(nil, doc)
}

// Decode reverses Encode, using the key extension to detect compression
func Decode(key string, data []byte) ([]byte, error) {
	if !strings.HasSuffix(key, snappyExt) {
		return data, nil
	}
	doc, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s: %w", key, err)
	}
	return doc, nil
}

func checkSegment(s string) error {
	if s == "" || s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return nil
}

// checkKey rejects absolute keys and any that climb out of the root
func checkKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || path.Clean(key) != key {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}
