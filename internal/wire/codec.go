package wire

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

// Failure modes: every one is silently dropped by the caller (the
// protocol handler), per spec. The codec only needs to distinguish
// them for tests.
var (
	ErrMalformed   = errors.New("wire: malformed frame")
	ErrUnknownKind = errors.New("wire: unknown kind")
	ErrMissingSlot = errors.New("wire: missing required slot")
)

// rawEnvelope is the on-the-wire shape: a flow-style mapping with a
// nested payload mapping whose shape is routed by msg_type.
type rawEnvelope struct {
	Version     int       `yaml:"version"`
	MsgID       string    `yaml:"msg_id"`
	MsgType     string    `yaml:"msg_type"`
	SenderID    string    `yaml:"sender_id"`
	SenderAddr  string    `yaml:"sender_addr"`
	TimestampMS int64     `yaml:"timestamp_ms"`
	TTL         int       `yaml:"ttl"`
	Payload     yaml.Node `yaml:"payload"`
}

// Encode produces the byte frame for a datagram: one compact,
// human-inspectable flow-style record, no length prefix.
func Encode(e *Envelope) ([]byte, error) {
	if e == nil {
		return nil, ErrMalformed
	}
	raw := rawEnvelope{
		Version:     e.Version,
		MsgID:       e.MsgID,
		MsgType:     string(e.Kind),
		SenderID:    e.SenderID,
		SenderAddr:  e.SenderAddr,
		TimestampMS: e.TimestampMS,
		TTL:         e.TTL,
	}
	if e.Payload != nil {
		if err := raw.Payload.Encode(e.Payload); err != nil {
			return nil, err
		}
	} else {
		raw.Payload.Kind = yaml.MappingNode
		raw.Payload.Tag = "!!map"
	}

	var doc yaml.Node
	if err := doc.Encode(&raw); err != nil {
		return nil, err
	}
	setFlowStyle(&doc)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, err
	}
	_ = enc.Close()

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses received bytes into an envelope, or fails. Failure
// covers: non-textual frame, not a top-level record, unknown kind,
// missing required envelope slots. Missing non-essential fields
// default (version=1, ttl=0, timestamp_ms=0, payload empty).
func Decode(b []byte) (*Envelope, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, ErrMalformed
	}

	var raw rawEnvelope
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, ErrMalformed
	}

	if raw.MsgID == "" || raw.SenderID == "" || raw.SenderAddr == "" || raw.MsgType == "" {
		return nil, ErrMissingSlot
	}

	kind := Kind(raw.MsgType)
	if !kind.Valid() {
		return nil, ErrUnknownKind
	}

	payload, err := decodePayload(kind, &raw.Payload)
	if err != nil {
		return nil, err
	}

	version := raw.Version
	if version == 0 {
		version = 1
	}

	return &Envelope{
		Version:     version,
		MsgID:       raw.MsgID,
		Kind:        kind,
		SenderID:    raw.SenderID,
		SenderAddr:  raw.SenderAddr,
		TimestampMS: raw.TimestampMS,
		TTL:         raw.TTL,
		Payload:     payload,
	}, nil
}

// setFlowStyle recursively forces flow style on every mapping and
// sequence node so the encoded document is a single compact,
// self-describing record rather than indented block YAML.
func setFlowStyle(n *yaml.Node) {
	if n == nil {
		return
	}
	switch n.Kind {
	case yaml.MappingNode, yaml.SequenceNode:
		n.Style = yaml.FlowStyle
	}
	for _, c := range n.Content {
		setFlowStyle(c)
	}
}
