// Package loki ships log lines to a Grafana Loki push endpoint in gzip compressed batches.
package loki

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
)

type Logger interface {
	Error(msg string, args ...any)
}

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	// URL of the push endpoint, e.g. https://example-prod.grafana.net/loki/api/v1/push
	URL string `validate:"required,url"`

	// BatchMaxSize is the maximum number of lines sent in one request.
	BatchMaxSize int `validate:"gte=1"`

	// BatchMaxWait is the longest a line waits before its batch is sent.
	BatchMaxWait time.Duration `validate:"gte=1"`

	// BufferSize is the number of lines that can be queued before Push starts dropping them.
	BufferSize int `validate:"gte=1"`

	// Labels are attached to every stream.
	Labels map[string]string

	// TenantKey and TenantValue form an optional tenant header.
	TenantKey   string
	TenantValue string `validate:"required_with=TenantKey"`

	// Username and Password enable basic authentication when both are set.
	Username string
	Password string
}

func (cfg *Config) setDefaults() {
	if cfg.BatchMaxSize == 0 {
		cfg.BatchMaxSize = 1000
	}
	if cfg.BatchMaxWait == 0 {
		cfg.BatchMaxWait = 5 * time.Second
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = 10000
	}
	if cfg.Labels == nil {
		cfg.Labels = map[string]string{}
	}
}

type LogEntry struct {
	Level     string    `json:"level"`
	Message   string    `json:"msg"`
	Caller    string    `json:"caller,omitempty"`
	ErrorType string    `json:"error_type,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Time      time.Time `json:"-"`
}

type pushRequest struct {
	Streams []stream `json:"streams"`
}

type stream struct {
	Stream map[string]string `json:"stream"`
	Values [][2]string       `json:"values"`
}

type Pusher struct {
	config  Config
	client  HTTPClient
	logger  Logger
	entries chan LogEntry
	batch   [][2]string
	ctx     context.Context
	cancel  context.CancelFunc
	quit    chan struct{}
	once    sync.Once
	done    sync.WaitGroup
	dropped atomic.Int64
}

func New(ctx context.Context, cfg Config, logger Logger) (*Pusher, error) {
	return NewWithClient(ctx, cfg, logger, &http.Client{Timeout: 10 * time.Second})
}

func NewWithClient(ctx context.Context, cfg Config, logger Logger, client HTTPClient) (*Pusher, error) {
	cfg.setDefaults()
	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &Pusher{
		config:  cfg,
		client:  client,
		logger:  logger,
		entries: make(chan LogEntry, cfg.BufferSize),
		batch:   make([][2]string, 0, cfg.BatchMaxSize),
		ctx:     ctx,
		cancel:  cancel,
		quit:    make(chan struct{}),
	}

	p.done.Add(1)
	go p.run()
	return p, nil
}

// Push queues the entry. It never blocks; entries are dropped while the buffer is full.
func (p *Pusher) Push(e LogEntry) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	select {
	case p.entries <- e:
	default:
		p.dropped.Add(1)
	}
}

// Dropped is the number of entries lost to a full buffer.
func (p *Pusher) Dropped() int64 {
	return p.dropped.Load()
}

// Stop sends what is still queued and stops the pusher.
func (p *Pusher) Stop() {
	p.once.Do(func() {
		close(p.quit)
		p.done.Wait()
		p.cancel()
	})
}

func (p *Pusher) run() {
	defer p.done.Done()

	ticker := time.NewTicker(p.config.BatchMaxWait)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.quit:
			p.drain()
			p.flush()
			return
		case entry := <-p.entries:
			p.add(entry)
		case <-ticker.C:
			p.flush()
		}
	}
}

func (p *Pusher) drain() {
	for {
		select {
		case entry := <-p.entries:
			p.add(entry)
		default:
			return
		}
	}
}

func (p *Pusher) add(entry LogEntry) {
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}
	p.batch = append(p.batch, [2]string{strconv.FormatInt(entry.Time.UnixNano(), 10), string(line)})
	if len(p.batch) >= p.config.BatchMaxSize {
		p.flush()
	}
}

func (p *Pusher) flush() {
	if len(p.batch) == 0 {
		return
	}
	if err := p.send(p.batch); err != nil {
		p.logger.Error("failed to send logs", "error", err, "lines", len(p.batch))
	}
	p.batch = p.batch[:0]
}

func (p *Pusher) send(values [][2]string) error {
	buf := &bytes.Buffer{}
	gz := gzip.NewWriter(buf)

	request := pushRequest{Streams: []stream{{Stream: p.config.Labels, Values: values}}}
	if err := json.NewEncoder(gz).Encode(request); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(p.ctx, http.MethodPost, p.config.URL, buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	if p.config.TenantKey != "" {
		req.Header.Set(p.config.TenantKey, p.config.TenantValue)
	}
	if p.config.Username != "" && p.config.Password != "" {
		req.SetBasicAuth(p.config.Username, p.config.Password)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected response code from Loki: %s, body: %s", resp.Status, string(body))
	}
	return nil
}
