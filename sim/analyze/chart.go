package analyze

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// MessagePropagation is one originated message's observed spread:
// which ports saw a "GOSSIP new" or "GOSSIP recv" for it and the
// epoch-ms each first did.
type MessagePropagation struct {
	MsgID       string        `json:"msg_id"`
	FirstSeenMS int64         `json:"first_seen_ms"`
	SeenAtMS    map[int]int64 `json:"seen_at_ms"`
	SeenPorts   []int         `json:"seen_ports"`

	// Convergence95MS is the elapsed time, in ms from FirstSeenMS, until
	// at least 95% of the run's nodes had seen this message. Zero if
	// that threshold was never reached.
	Convergence95MS int64 `json:"convergence_95_ms"`
}

// Report is the aggregate result of one simulation run.
type Report struct {
	NodeCount       int                  `json:"node_count"`
	MessagesSeen    int                  `json:"messages_seen"`
	DeliveryRatio   float64              `json:"delivery_ratio"`
	TotalSent       uint64               `json:"total_sent"`
	FinalPeerCounts map[int]int          `json:"final_peer_counts"`
	Propagation     []MessagePropagation `json:"propagation"`
}

// BuildReport reduces per-node event streams into a Report. delivery
// ratio is the mean, over every originated message, of the fraction of
// nodes that logged a GOSSIP new or GOSSIP recv for it.
func BuildReport(perNode map[int][]Event) Report {
	ports := make([]int, 0, len(perNode))
	for port := range perNode {
		ports = append(ports, port)
	}
	sort.Ints(ports)

	propByID := make(map[string]*MessagePropagation)
	finalPeers := make(map[int]int)
	var totalSent uint64

	for _, port := range ports {
		for _, ev := range perNode[port] {
			switch ev.Kind {
			case "gossip_new", "gossip_recv":
				mp, ok := propByID[ev.MsgID]
				if !ok {
					mp = &MessagePropagation{MsgID: ev.MsgID, SeenAtMS: make(map[int]int64)}
					propByID[ev.MsgID] = mp
				}
				if existing, already := mp.SeenAtMS[port]; !already || ev.EpochMS < existing {
					mp.SeenAtMS[port] = ev.EpochMS
				}
			case "stats":
				finalPeers[port] = ev.PeerCount
				totalSent += ev.SentCount
			}
		}
	}

	ids := make([]string, 0, len(propByID))
	for id := range propByID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	propagation := make([]MessagePropagation, 0, len(ids))
	var ratioSum float64
	for _, id := range ids {
		mp := propByID[id]
		mp.SeenPorts = make([]int, 0, len(mp.SeenAtMS))
		times := make([]int64, 0, len(mp.SeenAtMS))
		first := int64(0)
		for port, ms := range mp.SeenAtMS {
			mp.SeenPorts = append(mp.SeenPorts, port)
			times = append(times, ms)
			if first == 0 || ms < first {
				first = ms
			}
		}
		sort.Ints(mp.SeenPorts)
		sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
		mp.FirstSeenMS = first
		mp.Convergence95MS = convergence95(times, first, len(ports))
		if len(ports) > 0 {
			ratioSum += float64(len(mp.SeenAtMS)) / float64(len(ports))
		}
		propagation = append(propagation, *mp)
	}

	ratio := 0.0
	if len(ids) > 0 {
		ratio = ratioSum / float64(len(ids))
	}

	return Report{
		NodeCount:       len(ports),
		MessagesSeen:    len(ids),
		DeliveryRatio:   ratio,
		TotalSent:       totalSent,
		FinalPeerCounts: finalPeers,
		Propagation:     propagation,
	}
}

// convergence95 returns the elapsed ms from first until the
// ceil(0.95*nodeCount)-th sorted arrival time, or 0 if fewer than that
// many nodes ever saw the message.
func convergence95(sortedTimes []int64, first int64, nodeCount int) int64 {
	if nodeCount == 0 || len(sortedTimes) == 0 {
		return 0
	}
	target := (nodeCount*95 + 99) / 100
	if target < 1 {
		target = 1
	}
	if len(sortedTimes) < target {
		return 0
	}
	return sortedTimes[target-1] - first
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Serve exposes the report as JSON over HTTP, plus a websocket feed
// that streams it once on connect (a live re-run would push updates;
// this harness is a single offline pass). Routed with gorilla/mux the
// way services/control-plane/registry/main.go routes its API.
func Serve(ctx context.Context, addr string, report Report) error {
	r := mux.NewRouter()

	r.HandleFunc("/report", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(report)
	}).Methods(http.MethodGet)

	r.HandleFunc("/report/live", func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(report)
	}).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	log.Printf("sim/analyze: serving report on %s", addr)
	err := srv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
