package wire

import "gopkg.in/yaml.v3"

// PoWToken is the proof-of-work admission token presented inside a
// HELLO payload.
type PoWToken struct {
	Algorithm string `yaml:"algorithm"`
	K         int    `yaml:"k"`
	Nonce     uint64 `yaml:"nonce"`
	Digest    string `yaml:"digest_hex"`
	ElapsedMS int64  `yaml:"elapsed_ms,omitempty"`
}

// PeerInfo is one entry embedded in a PEERS_LIST payload.
type PeerInfo struct {
	NodeID string `yaml:"node_id"`
	Addr   string `yaml:"addr"`
}

// HelloPayload: {capabilities:[...], pow?: PoWToken}
type HelloPayload struct {
	Capabilities []string  `yaml:"capabilities"`
	PoW          *PoWToken `yaml:"pow,omitempty"`
}

func (HelloPayload) Kind() Kind { return KindHello }

// GetPeersPayload: {max_peers:int}
type GetPeersPayload struct {
	MaxPeers int `yaml:"max_peers"`
}

func (GetPeersPayload) Kind() Kind { return KindGetPeers }

// PeersListPayload: {peers:[{node_id, addr}, ...]}
type PeersListPayload struct {
	Peers []PeerInfo `yaml:"peers"`
}

func (PeersListPayload) Kind() Kind { return KindPeersList }

// GossipPayload: {topic, data, origin_id, origin_timestamp_ms}. data is
// the literal text of the line that originated the message: kept as a
// string so the encoded frame carries it as plain YAML text, not a
// base64 !!binary scalar.
type GossipPayload struct {
	Topic             string `yaml:"topic"`
	Data              string `yaml:"data"`
	OriginID          string `yaml:"origin_id"`
	OriginTimestampMS int64  `yaml:"origin_timestamp_ms"`
}

func (GossipPayload) Kind() Kind { return KindGossip }

// PingPayload: {ping_id, seq:int}
type PingPayload struct {
	PingID string `yaml:"ping_id"`
	Seq    uint64 `yaml:"seq"`
}

func (PingPayload) Kind() Kind { return KindPing }

// PongPayload: {ping_id, seq:int}
type PongPayload struct {
	PingID string `yaml:"ping_id"`
	Seq    uint64 `yaml:"seq"`
}

func (PongPayload) Kind() Kind { return KindPong }

// IHavePayload: {ids:[...], max_ids:int}
type IHavePayload struct {
	IDs    []string `yaml:"ids"`
	MaxIDs int      `yaml:"max_ids,omitempty"`
}

func (IHavePayload) Kind() Kind { return KindIHave }

// IWantPayload: {ids:[...]}
type IWantPayload struct {
	IDs []string `yaml:"ids"`
}

func (IWantPayload) Kind() Kind { return KindIWant }

// decodePayload routes a decoded YAML node to the shape required by
// kind, rejecting a node that doesn't decode cleanly into that shape.
func decodePayload(kind Kind, node *yaml.Node) (Payload, error) {
	if node == nil || node.Kind == 0 {
		node = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	switch kind {
	case KindHello:
		var p HelloPayload
		if err := node.Decode(&p); err != nil {
			return nil, ErrMalformed
		}
		return p, nil
	case KindGetPeers:
		var p GetPeersPayload
		if err := node.Decode(&p); err != nil {
			return nil, ErrMalformed
		}
		return p, nil
	case KindPeersList:
		var p PeersListPayload
		if err := node.Decode(&p); err != nil {
			return nil, ErrMalformed
		}
		return p, nil
	case KindGossip:
		var p GossipPayload
		if err := node.Decode(&p); err != nil {
			return nil, ErrMalformed
		}
		return p, nil
	case KindPing:
		var p PingPayload
		if err := node.Decode(&p); err != nil {
			return nil, ErrMalformed
		}
		return p, nil
	case KindPong:
		var p PongPayload
		if err := node.Decode(&p); err != nil {
			return nil, ErrMalformed
		}
		return p, nil
	case KindIHave:
		var p IHavePayload
		if err := node.Decode(&p); err != nil {
			return nil, ErrMalformed
		}
		return p, nil
	case KindIWant:
		var p IWantPayload
		if err := node.Decode(&p); err != nil {
			return nil, ErrMalformed
		}
		return p, nil
	default:
		return nil, ErrUnknownKind
	}
}
