package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// LokiWriter is an io.Writer that batches JSON log lines and pushes them to
// a Loki endpoint. Plug it into the logger with AddSink.
type LokiWriter struct {
	url      string
	labels   map[string]string
	client   *http.Client
	minLevel zerolog.Level

	mu     sync.Mutex
	buffer []lokiEntry
	ticker *time.Ticker
	done   chan struct{}
}

type lokiEntry struct {
	timestamp string
	line      string
}

type lokiStream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

type lokiPushRequest struct {
	Streams []lokiStream `json:"streams"`
}

const lokiBufferSize = 100

// NewLokiWriter starts a writer pushing to url with the given stream labels.
func NewLokiWriter(url string, labels map[string]string) *LokiWriter {
	w := &LokiWriter{
		url:      url,
		labels:   labels,
		client:   &http.Client{Timeout: 5 * time.Second},
		minLevel: zerolog.InfoLevel,
		buffer:   make([]lokiEntry, 0, lokiBufferSize),
		ticker:   time.NewTicker(2 * time.Second),
		done:     make(chan struct{}),
	}
	go w.flusher()
	return w
}

// SetMinLevel sets the minimum level forwarded to Loki.
func (w *LokiWriter) SetMinLevel(level zerolog.Level) {
	w.minLevel = level
}

// Write buffers one JSON log line. Lines that fail to parse or fall below
// the minimum level are dropped silently.
func (w *LokiWriter) Write(p []byte) (int, error) {
	var logData map[string]interface{}
	if err := json.Unmarshal(p, &logData); err != nil {
		return len(p), nil
	}

	if levelStr, ok := logData["level"].(string); ok {
		if lvl, err := zerolog.ParseLevel(levelStr); err == nil && lvl < w.minLevel {
			return len(p), nil
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.buffer = append(w.buffer, lokiEntry{
		timestamp: fmt.Sprintf("%d", time.Now().UnixNano()),
		line:      string(bytes.TrimSpace(p)),
	})
	if len(w.buffer) >= lokiBufferSize {
		w.flushLocked()
	}
	return len(p), nil
}

// Sync implements zapcore.WriteSyncer.
func (w *LokiWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushLocked()
	return nil
}

func (w *LokiWriter) flusher() {
	for {
		select {
		case <-w.ticker.C:
			w.mu.Lock()
			w.flushLocked()
			w.mu.Unlock()
		case <-w.done:
			w.mu.Lock()
			w.flushLocked()
			w.mu.Unlock()
			return
		}
	}
}

func (w *LokiWriter) flushLocked() {
	if len(w.buffer) == 0 {
		return
	}

	values := make([][]string, 0, len(w.buffer))
	for _, entry := range w.buffer {
		values = append(values, []string{entry.timestamp, entry.line})
	}
	w.buffer = w.buffer[:0]

	req := lokiPushRequest{
		Streams: []lokiStream{{Stream: w.labels, Values: values}},
	}

	// Send in the background so logging never blocks on Loki.
	go w.send(req)
}

func (w *LokiWriter) send(req lokiPushRequest) {
	data, err := json.Marshal(req)
	if err != nil {
		return
	}

	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(data))
	if err != nil {
		return
	}
	defer resp.Body.Close()
}

// Close flushes remaining entries and stops the background flusher.
func (w *LokiWriter) Close() error {
	w.ticker.Stop()
	close(w.done)
	time.Sleep(100 * time.Millisecond)
	return nil
}
