package ctlsock

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/Ap3pp3rs94/gossipd/internal/protocol"
	"github.com/Ap3pp3rs94/gossipd/internal/telemetry"
	"github.com/Ap3pp3rs94/gossipd/internal/wire"
	"github.com/Ap3pp3rs94/gossipd/pkg/stats"
	"github.com/stretchr/testify/require"
)

func setupServer(t *testing.T) (sockPath string, cancel context.CancelFunc) {
	t.Helper()

	core := protocol.NewCore("n1", protocol.Config{
		SelfAddr:  "127.0.0.1:9000",
		Fanout:    3,
		TTL:       8,
		PeerLimit: 10,
		Mode:      protocol.ModePush,
	}, telemetry.Nop, &stats.Counters{}, func(addr string, env *wire.Envelope) {})

	queue := make(chan func(), 16)
	post := func(fn func()) { queue <- fn }

	ctx, cancelFn := context.WithCancel(context.Background())
	go func() {
		for {
			select {
			case fn := <-queue:
				fn()
			case <-ctx.Done():
				return
			}
		}
	}()

	sockPath = filepath.Join(t.TempDir(), "ctl.sock")
	srv, err := New(sockPath, core, post, telemetry.Nop)
	require.NoError(t, err)

	go srv.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	return sockPath, cancelFn
}

func send(t *testing.T, path, line string) map[string]any {
	t.Helper()
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))

	_, err = conn.Write([]byte(line + "\n"))
	require.NoError(t, err)

	scanner := bufio.NewScanner(conn)
	require.True(t, scanner.Scan())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
	return resp
}

func TestCtlSock_Stats_RoundTrips(t *testing.T) {
	path, cancel := setupServer(t)
	defer cancel()

	resp := send(t, path, "stats")
	require.Equal(t, true, resp["ok"])
	require.Contains(t, resp, "data")
}

func TestCtlSock_Inject_Succeeds(t *testing.T) {
	path, cancel := setupServer(t)
	defer cancel()

	resp := send(t, path, "inject sim hello world")
	require.Equal(t, true, resp["ok"])
}

func TestCtlSock_MalformedInject_ReturnsBoundedError(t *testing.T) {
	path, cancel := setupServer(t)
	defer cancel()

	resp := send(t, path, "inject onlytopic")
	errBody, ok := resp["error"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "bad_request", errBody["code"])

	// the listener goroutine must still be alive for a follow-up request
	resp2 := send(t, path, "stats")
	require.Equal(t, true, resp2["ok"])
}

func TestCtlSock_UnknownCommand_ReturnsNotFound(t *testing.T) {
	path, cancel := setupServer(t)
	defer cancel()

	resp := send(t, path, "bogus")
	errBody, ok := resp["error"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "not_found", errBody["code"])
}

func TestCtlSock_EmptyLine_ReturnsBadRequest(t *testing.T) {
	path, cancel := setupServer(t)
	defer cancel()

	resp := send(t, path, "")
	errBody, ok := resp["error"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "bad_request", errBody["code"])
}
