// Package ctlsock is the local control socket behind gossipctl: a Unix
// domain listener accepting one line per connection (`inject <topic>
// <text>` or `stats`) and replying with one JSON line. Every operation
// that touches node state is posted onto the node's single owner
// goroutine and awaited, the same discipline internal/tasks uses, so
// the control socket never mutates protocol.Core directly.
package ctlsock

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	cerrors "github.com/Ap3pp3rs94/gossipd/pkg/errors"

	"github.com/Ap3pp3rs94/gossipd/internal/protocol"
	"github.com/Ap3pp3rs94/gossipd/internal/telemetry"
	"github.com/Ap3pp3rs94/gossipd/pkg/stats"
)

const (
	connTimeout = 5 * time.Second
	postTimeout = 2 * time.Second
	maxConns    = 8
)

type statsResponse struct {
	OK   bool           `json:"ok"`
	Data stats.Snapshot `json:"data"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// Server accepts connections on a Unix domain socket and dispatches
// inject/stats commands onto core via post.
type Server struct {
	ln   net.Listener
	core *protocol.Core
	post func(func())
	log  *telemetry.Logger
	sem  chan struct{}
	wg   sync.WaitGroup
}

// New binds a Unix domain socket at path, removing any stale socket
// file left behind by a prior, uncleanly-terminated process.
func New(path string, core *protocol.Core, post func(func()), log *telemetry.Logger) (*Server, error) {
	if log == nil {
		log = telemetry.Nop
	}
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}
	return &Server{
		ln:   ln,
		core: core,
		post: post,
		log:  log,
		sem:  make(chan struct{}, maxConns),
	}, nil
}

// Run accepts connections until ctx is canceled, then closes the
// listener and waits for in-flight connections to finish.
func (s *Server) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		_ = s.ln.Close()
	}()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			select {
			case s.sem <- struct{}{}:
				defer func() { <-s.sem }()
			case <-ctx.Done():
				_ = conn.Close()
				return
			}
			s.handle(ctx, conn)
		}()
	}

	s.wg.Wait()
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		return
	}

	resp := s.dispatch(ctx, strings.TrimSpace(scanner.Text()))
	b, err := json.Marshal(resp)
	if err != nil {
		s.log.Error("ctlsock response marshal failed", map[string]any{"err": err.Error()})
		return
	}
	b = append(b, '\n')
	_, _ = conn.Write(b)
}

func (s *Server) dispatch(ctx context.Context, line string) any {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return cerrors.NewEnvelope(cerrors.CtlBadRequest, "empty command", "", "", nil)
	}

	switch fields[0] {
	case "stats":
		return s.runOnOwner(ctx, func() any {
			return statsResponse{OK: true, Data: s.core.StatsSnapshot()}
		})

	case "inject":
		if len(fields) < 3 {
			return cerrors.NewEnvelope(cerrors.CtlBadRequest, "usage: inject <topic> <text>", "", "", nil)
		}
		topic := fields[1]
		prefix := "inject " + topic + " "
		text := strings.TrimPrefix(line, prefix)
		return s.runOnOwner(ctx, func() any {
			s.core.Inject(topic, text)
			return okResponse{OK: true}
		})

	default:
		return cerrors.NewEnvelope(cerrors.CtlNotFound, "unknown command: "+fields[0], "", "", nil)
	}
}

// runOnOwner posts fn onto the node's single owner goroutine and waits
// (bounded by postTimeout) for its result.
func (s *Server) runOnOwner(ctx context.Context, fn func() any) any {
	done := make(chan any, 1)
	s.post(func() { done <- fn() })

	select {
	case result := <-done:
		return result
	case <-ctx.Done():
		return cerrors.NewEnvelope(cerrors.Internal, "node shutting down", "", "", nil)
	case <-time.After(postTimeout):
		return cerrors.NewEnvelope(cerrors.Internal, "timed out waiting for node", "", "", nil)
	}
}
