package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodec_RoundTrip_Ping(t *testing.T) {
	env := New(KindPing, "abc", "127.0.0.1:8000", 0, PingPayload{
		PingID: NewMsgID(),
		Seq:    17,
	})

	encoded, err := Encode(env)
	require.NoError(t, err)

	decoded, err := Decode(encoded)
	require.NoError(t, err)

	require.Equal(t, KindPing, decoded.Kind)
	require.Equal(t, env.MsgID, decoded.MsgID)
	require.Equal(t, env.SenderID, decoded.SenderID)
	require.Equal(t, env.SenderAddr, decoded.SenderAddr)

	pp, ok := decoded.Payload.(PingPayload)
	require.True(t, ok)
	require.EqualValues(t, 17, pp.Seq)
	require.Equal(t, env.Payload.(PingPayload).PingID, pp.PingID)
}

func TestCodec_RoundTrip_AllKinds(t *testing.T) {
	cases := []struct {
		name    string
		payload Payload
	}{
		{"hello", HelloPayload{Capabilities: []string{"gossip/1"}}},
		{"hello_pow", HelloPayload{Capabilities: []string{"gossip/1"}, PoW: &PoWToken{Algorithm: "sha256", K: 4, Nonce: 99, Digest: "0000abc"}}},
		{"get_peers", GetPeersPayload{MaxPeers: 20}},
		{"peers_list", PeersListPayload{Peers: []PeerInfo{{NodeID: "n1", Addr: "127.0.0.1:9001"}}}},
		{"gossip", GossipPayload{Topic: "app", Data: "hello", OriginID: "n1", OriginTimestampMS: 123}},
		{"ping", PingPayload{PingID: "p1", Seq: 1}},
		{"pong", PongPayload{PingID: "p1", Seq: 1}},
		{"ihave", IHavePayload{IDs: []string{"a", "b"}, MaxIDs: 50}},
		{"iwant", IWantPayload{IDs: []string{"a"}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := New(tc.payload.Kind(), "n1", "127.0.0.1:9000", 8, tc.payload)
			b, err := Encode(env)
			require.NoError(t, err)

			decoded, err := Decode(b)
			require.NoError(t, err)
			require.Equal(t, tc.payload.Kind(), decoded.Kind)
			require.IsType(t, tc.payload, decoded.Payload)
		})
	}
}

func TestCodec_Encode_GossipDataIsHumanInspectableText(t *testing.T) {
	env := New(KindGossip, "n1", "127.0.0.1:9000", 8, GossipPayload{
		Topic:    "app",
		Data:     "hello world",
		OriginID: "n1",
	})

	b, err := Encode(env)
	require.NoError(t, err)

	frame := string(b)
	require.Contains(t, frame, "hello world")
	require.NotContains(t, frame, "!!binary")
	require.False(t, strings.Contains(frame, "aGVsbG8gd29ybGQ="), "data must not be base64-encoded")

	decoded, err := Decode(b)
	require.NoError(t, err)
	gp, ok := decoded.Payload.(GossipPayload)
	require.True(t, ok)
	require.Equal(t, "hello world", gp.Data)
}

func TestCodec_BadFrame_Rejected(t *testing.T) {
	bad := []string{
		"not json at all",
		"",
		"[1,2,3]",
		`{"msg_type":"UNKNOWN"}`,
	}

	for _, frame := range bad {
		_, err := Decode([]byte(frame))
		require.Error(t, err, "frame %q should be rejected", frame)
	}
}

func TestCodec_Decode_UnknownKind(t *testing.T) {
	frame := `{version: 1, msg_id: abc, msg_type: NOPE, sender_id: n1, sender_addr: "127.0.0.1:9000", ttl: 0, timestamp_ms: 1, payload: {}}`
	_, err := Decode([]byte(frame))
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestCodec_Decode_MissingSlot(t *testing.T) {
	frame := `{version: 1, msg_type: PING, sender_id: n1, sender_addr: "127.0.0.1:9000", ttl: 0, timestamp_ms: 1, payload: {}}`
	_, err := Decode([]byte(frame))
	require.ErrorIs(t, err, ErrMissingSlot)
}
