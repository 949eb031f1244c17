package engine

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"github.com/gorilla/websocket"
)

// remoteChunkSamples bounds each binary frame to one second of audio.
const remoteChunkSamples = 16000

// RemoteEngine sends waveforms to a websocket transcription server and reads
// back a single JSON result. One connection is opened per call so concurrent
// requests never share a socket.
type RemoteEngine struct {
	url     string
	variant string
	dialer  *websocket.Dialer
	mu      sync.Mutex
	closed  bool
}

type remoteRequest struct {
	Model       string  `json:"model"`
	Language    string  `json:"language"`
	Timestamps  bool    `json:"timestamps"`
	Temperature float32 `json:"temperature"`
	SampleRate  int     `json:"sample_rate"`
	Samples     int     `json:"samples"`
}

type remoteResponse struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
	Error    string    `json:"error"`
}

// NewRemoteEngine returns an Engine backed by the server at url.
func NewRemoteEngine(url, variant string) (*RemoteEngine, error) {
	if url == "" {
		return nil, fmt.Errorf("remote: server url required")
	}
	return &RemoteEngine{
		url:     url,
		variant: variant,
		dialer:  websocket.DefaultDialer,
	}, nil
}

func (e *RemoteEngine) Transcribe(ctx context.Context, samples []float32, opts Options) (Result, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return Result{}, fmt.Errorf("remote: engine closed")
	}
	e.mu.Unlock()

	conn, _, err := e.dialer.DialContext(ctx, e.url, nil)
	if err != nil {
		return Result{}, fmt.Errorf("remote: connect %s: %w", e.url, err)
	}
	defer conn.Close()

	req := remoteRequest{
		Model:       e.variant,
		Language:    opts.Language,
		Timestamps:  opts.Timestamps,
		Temperature: opts.Temperature,
		SampleRate:  16000,
		Samples:     len(samples),
	}
	if err := conn.WriteJSON(req); err != nil {
		return Result{}, fmt.Errorf("remote: send request: %w", err)
	}

	for off := 0; off < len(samples); off += remoteChunkSamples {
		end := off + remoteChunkSamples
		if end > len(samples) {
			end = len(samples)
		}
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, encodeSamples(samples[off:end])); err != nil {
			return Result{}, fmt.Errorf("remote: send audio: %w", err)
		}
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"eof":1}`)); err != nil {
		return Result{}, fmt.Errorf("remote: send eof: %w", err)
	}

	_, payload, err := conn.ReadMessage()
	if err != nil {
		return Result{}, fmt.Errorf("remote: read result: %w", err)
	}
	var resp remoteResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return Result{}, fmt.Errorf("remote: decode result: %w", err)
	}
	if resp.Error != "" {
		return Result{}, fmt.Errorf("remote: server error: %s", resp.Error)
	}

	res := Result{Text: resp.Text, Language: resp.Language}
	if opts.Timestamps {
		res.Segments = resp.Segments
	}
	return res, nil
}

func (e *RemoteEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func encodeSamples(samples []float32) []byte {
	buf := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(s))
	}
	return buf
}
