// Package bridge is the boundary between order dispatch and the printers.
//
// A Bridge lists the printers it can reach and accepts print jobs made of
// raw segments. Local drives printers in-process; WSClient and HTTPClient
// talk to another print server that does.
package bridge

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
)

// ErrNotConnected is returned by remote bridges with no live session
var ErrNotConnected = errors.New("bridge not connected")

// Segment formats
const (
	FormatPlain  = "plain"
	FormatBase64 = "base64"
)

// Segment is one chunk of a print payload
type Segment struct {
	Type   string `json:"type"`
	Format string `json:"format"`
	Data   string `json:"data"`
}

// Plain returns a raw plain-text segment
func Plain(data string) Segment {
	return Segment{Type: "raw", Format: FormatPlain, Data: data}
}

// Binary returns a raw segment carrying arbitrary bytes
func Binary(data []byte) Segment {
	return Segment{Type: "raw", Format: FormatBase64, Data: base64.StdEncoding.EncodeToString(data)}
}

// Bytes decodes the segment payload
func (s Segment) Bytes() ([]byte, error) {
	if s.Type != "" && s.Type != "raw" {
		return nil, fmt.Errorf("unsupported segment type %q", s.Type)
	}
	switch s.Format {
	case FormatPlain, "":
		return []byte(s.Data), nil
	case FormatBase64:
		return base64.StdEncoding.DecodeString(s.Data)
	default:
		return nil, fmt.Errorf("unsupported segment format %q", s.Format)
	}
}

// Join concatenates the decoded payload of every segment
func Join(segments []Segment) ([]byte, error) {
	var buf bytes.Buffer
	for i, s := range segments {
		data, err := s.Bytes()
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", i, err)
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

// Config addresses a print job
type Config struct {
	Printer string `json:"printer"`
	Copies  int    `json:"copies,omitempty"`
}

// Bridge is a printing bridge
type Bridge interface {
	Connect(ctx context.Context) error
	Printers(ctx context.Context) ([]string, error)
	NewConfig(printerID string) Config
	Print(ctx context.Context, cfg Config, data []Segment) error
	Close() error
}

func copies(cfg Config) int {
	if cfg.Copies < 1 {
		return 1
	}
	return cfg.Copies
}
