// Package journal archives committed bond operations in content-addressed
// storage.
//
// Each entry embeds the event and the content id of the previous entry, so the
// journal forms a hash chain that can be walked back from its head and checked
// against tampering. Impact reports are additionally archived as standalone
// report documents referenced from their entry.
package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ruteri/slb-bond-backend/interfaces"
	"github.com/ruteri/slb-bond-backend/metrics"
)

// ErrQueueFull is returned by Publish when the writer falls behind.
var ErrQueueFull = errors.New("journal queue full")

// Entry is one link of the journal chain.
type Entry struct {
	interfaces.Event

	// Prev is the id of the previous entry; zero for the first entry.
	Prev interfaces.ContentID `json:"prev"`

	// Report is the id of the archived report of an ImpactReported event.
	Report *interfaces.ContentID `json:"report,omitempty"`
}

// Report is the archived form of an impact report.
type Report struct {
	Seq        uint64               `json:"seq"`
	Issuer     interfaces.Principal `json:"issuer"`
	ReportedAt uint64               `json:"reported_at"`
	Period     uint64               `json:"period"`
	Impact     interfaces.Triple    `json:"impact"`
	DeviceID   string               `json:"device_id"`
	Digest     common.Hash          `json:"digest"`
}

// HeadStore persists the id of the latest entry across restarts.
type HeadStore interface {
	LoadHead(ctx context.Context) (interfaces.ContentID, error)
	SaveHead(ctx context.Context, head interfaces.ContentID) error
}

type Config struct {
	Backend interfaces.StorageBackend

	// Heads is optional. Without it every process starts a new chain.
	Heads HeadStore

	// QueueSize bounds the events waiting to be written. Default 256.
	QueueSize int

	Metrics *metrics.Metrics
	Log     *slog.Logger
}

// Publisher implements interfaces.EventSink. Publish only enqueues; Run
// writes the queued events in order.
type Publisher struct {
	backend interfaces.StorageBackend
	heads   HeadStore
	metrics *metrics.Metrics
	log     *slog.Logger

	queue chan interfaces.Event

	mu   sync.Mutex
	head interfaces.ContentID
}

var _ interfaces.EventSink = (*Publisher)(nil)

// New creates a publisher continuing the chain recorded in cfg.Heads.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	if cfg.Backend == nil {
		return nil, errors.New("journal: storage backend is required")
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	p := &Publisher{
		backend: cfg.Backend,
		heads:   cfg.Heads,
		metrics: cfg.Metrics,
		log:     cfg.Log,
		queue:   make(chan interfaces.Event, cfg.QueueSize),
	}

	if p.heads != nil {
		head, err := p.heads.LoadHead(ctx)
		if err != nil {
			return nil, fmt.Errorf("journal: loading head: %w", err)
		}
		p.head = head
	}
	return p, nil
}

// Publish enqueues event without blocking.
func (p *Publisher) Publish(ctx context.Context, event interfaces.Event) error {
	select {
	case p.queue <- event:
		return nil
	default:
		p.metrics.IncJournalDropped()
		return ErrQueueFull
	}
}

// Run writes queued events until ctx is done, then drains what is left
// using a fresh context.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case event := <-p.queue:
			p.write(ctx, event)
		case <-ctx.Done():
			p.drain()
			return
		}
	}
}

func (p *Publisher) drain() {
	for {
		select {
		case event := <-p.queue:
			p.write(context.Background(), event)
		default:
			return
		}
	}
}

// Head returns the id of the latest stored entry.
func (p *Publisher) Head() interfaces.ContentID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.head
}

// write stores one event. Failures are logged and counted; the chain then
// continues from the last entry that was stored.
func (p *Publisher) write(ctx context.Context, event interfaces.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry := Entry{Event: event, Prev: p.head}

	if event.Kind == interfaces.EventImpactReported {
		id, err := p.storeReport(ctx, event)
		if err != nil {
			p.metrics.IncJournalFailure(interfaces.ReportType.String())
			p.log.Error("Could not archive impact report", "seq", event.Seq, "err", err)
		} else {
			p.metrics.IncJournalStored(interfaces.ReportType.String())
			entry.Report = &id
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		p.metrics.IncJournalFailure(interfaces.EventType.String())
		p.log.Error("Could not encode journal entry", "seq", event.Seq, "err", err)
		return
	}
	id, err := p.backend.Store(ctx, data, interfaces.EventType)
	if err != nil {
		p.metrics.IncJournalFailure(interfaces.EventType.String())
		p.log.Error("Could not store journal entry", "seq", event.Seq, "kind", event.Kind, "err", err)
		return
	}
	p.metrics.IncJournalStored(interfaces.EventType.String())

	p.head = id
	if p.heads != nil {
		if err := p.heads.SaveHead(ctx, id); err != nil {
			p.log.Warn("Could not persist journal head", "head", id.String(), "err", err)
		}
	}
	p.log.Debug("Journal entry stored", "seq", event.Seq, "kind", event.Kind, "id", id.String())
}

func (p *Publisher) storeReport(ctx context.Context, event interfaces.Event) (interfaces.ContentID, error) {
	report := Report{
		Seq:        event.Seq,
		Issuer:     event.Principal,
		ReportedAt: event.Time,
	}
	report.Period, _ = event.Data["period"].(uint64)
	report.Impact, _ = event.Data["impact"].(interfaces.Triple)
	report.DeviceID, _ = event.Data["device_id"].(string)
	report.Digest, _ = event.Data["digest"].(common.Hash)
	data, err := json.Marshal(report)
	if err != nil {
		return interfaces.ContentID{}, err
	}
	return p.backend.Store(ctx, data, interfaces.ReportType)
}

// Walk visits the chain from head back to the first entry. It stops at the
// first error returned by fn or by the backend.
func Walk(ctx context.Context, backend interfaces.StorageBackend, head interfaces.ContentID, fn func(id interfaces.ContentID, entry Entry) error) error {
	for id := head; !id.IsZero(); {
		data, err := backend.Fetch(ctx, id, interfaces.EventType)
		if err != nil {
			return fmt.Errorf("journal: entry %s: %w", id, err)
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			return fmt.Errorf("journal: decoding entry %s: %w", id, err)
		}
		if err := fn(id, entry); err != nil {
			return err
		}
		id = entry.Prev
	}
	return nil
}

// FetchReport loads an archived impact report.
func FetchReport(ctx context.Context, backend interfaces.StorageBackend, id interfaces.ContentID) (Report, error) {
	var report Report
	data, err := backend.Fetch(ctx, id, interfaces.ReportType)
	if err != nil {
		return report, fmt.Errorf("journal: report %s: %w", id, err)
	}
	if err := json.Unmarshal(data, &report); err != nil {
		return report, fmt.Errorf("journal: decoding report %s: %w", id, err)
	}
	return report, nil
}
