// Command gossipsim spawns a small mesh of gossipd subprocesses,
// injects a test message through the first node's control socket,
// lets the mesh run for a fixed duration, then parses the resulting
// logs into a delivery-ratio report.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ap3pp3rs94/gossipd/sim"
	"github.com/Ap3pp3rs94/gossipd/sim/analyze"
)

func main() {
	binPath := flag.String("bin", "./gossipd", "path to the gossipd binary")
	nodeCount := flag.Int("nodes", 5, "number of nodes to spawn")
	basePort := flag.Int("base-port", 19000, "first node's UDP port; subsequent nodes increment")
	mode := flag.String("mode", "push", "push or hybrid")
	fanout := flag.Int("fanout", 3, "gossip fanout")
	ttl := flag.Int("ttl", 8, "message hop budget")
	duration := flag.Duration("duration", 10*time.Second, "how long to let the mesh run before shutdown")
	logDir := flag.String("out", "./gossipsim-logs", "directory for per-node log files")
	serveAddr := flag.String("serve", "", "if set, serve the resulting report at this HTTP address (e.g. :8090) until interrupted")
	injectTopic := flag.String("inject-topic", "sim", "topic used for the seed message injected after startup")
	injectText := flag.String("inject-text", "GOSSIPSIM_TEST_MESSAGE", "text of the seed message injected after startup")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	specs := make([]sim.NodeSpec, 0, *nodeCount)
	for i := 0; i < *nodeCount; i++ {
		port := *basePort + i
		bootstrap := ""
		if i > 0 {
			bootstrap = fmt.Sprintf("127.0.0.1:%d", *basePort)
		}
		specs = append(specs, sim.NodeSpec{
			Port:         port,
			Bootstrap:    bootstrap,
			Fanout:       *fanout,
			TTL:          *ttl,
			PeerLimit:    20,
			PingInterval: time.Second,
			PeerTimeout:  5 * time.Second,
			Seed:         int64(i + 1),
			Mode:         *mode,
			PullInterval: 2 * time.Second,
			IHaveMaxIDs:  50,
			PowK:         0,
			CtlSock:      fmt.Sprintf("%s/ctl-%d.sock", os.TempDir(), port),
		})
	}

	h := &sim.Harness{BinPath: *binPath, LogDir: *logDir}
	if err := h.Spawn(ctx, specs); err != nil {
		fmt.Fprintln(os.Stderr, "gossipsim: spawn failed:", err)
		os.Exit(1)
	}

	time.Sleep(500 * time.Millisecond)
	injectSeed(specs[0].CtlSock, *injectTopic, *injectText)

	select {
	case <-time.After(*duration):
		cancel()
	case <-ctx.Done():
	}

	h.Wait()

	perNode, err := analyze.ParseDir(*logDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gossipsim: parse failed:", err)
		os.Exit(1)
	}
	report := analyze.BuildReport(perNode)

	fmt.Printf("nodes=%d messages=%d delivery_ratio=%.3f total_sent=%d\n",
		report.NodeCount, report.MessagesSeen, report.DeliveryRatio, report.TotalSent)

	if *serveAddr != "" {
		serveCtx, serveCancel := context.WithCancel(context.Background())
		defer serveCancel()
		sigCh2 := make(chan os.Signal, 2)
		signal.Notify(sigCh2, syscall.SIGINT, syscall.SIGTERM)
		go func() {
			<-sigCh2
			serveCancel()
		}()
		if err := analyze.Serve(serveCtx, *serveAddr, report); err != nil {
			fmt.Fprintln(os.Stderr, "gossipsim: serve failed:", err)
			os.Exit(1)
		}
	}
}

// injectSeed dials the first node's control socket and posts one
// inject command; best-effort, matching gossipctl's own protocol.
func injectSeed(sockPath, topic, text string) {
	conn, err := net.DialTimeout("unix", sockPath, 2*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gossipsim: seed inject dial failed:", err)
		return
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(2 * time.Second))
	fmt.Fprintf(conn, "inject %s %s\n", topic, text)
}
