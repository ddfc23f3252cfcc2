// Command gossipctl is a thin companion CLI for a running gossipd
// node's control socket: inject an application message or print the
// node's current STATS snapshot.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"time"
)

func main() {
	if len(os.Args) < 3 {
		usage()
		os.Exit(2)
	}

	sockPath := os.Args[1]
	switch os.Args[2] {
	case "stats":
		run(sockPath, "stats")
	case "inject":
		if len(os.Args) < 5 {
			usage()
			os.Exit(2)
		}
		topic := os.Args[3]
		text := strings.Join(os.Args[4:], " ")
		run(sockPath, "inject "+topic+" "+text)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Println("gossipctl <sock-path> stats")
	fmt.Println("gossipctl <sock-path> inject <topic> <text...>")
}

func run(sockPath, command string) {
	conn, err := net.DialTimeout("unix", sockPath, 3*time.Second)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gossipctl: connect failed:", err)
		os.Exit(1)
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := fmt.Fprintln(conn, command); err != nil {
		fmt.Fprintln(os.Stderr, "gossipctl: write failed:", err)
		os.Exit(1)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		fmt.Fprintln(os.Stderr, "gossipctl: no response from node")
		os.Exit(1)
	}

	var obj map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &obj); err != nil {
		fmt.Fprintln(os.Stderr, "gossipctl: malformed response:", err)
		os.Exit(1)
	}

	if _, isErr := obj["error"]; isErr {
		fmt.Fprintln(os.Stderr, scanner.Text())
		os.Exit(1)
	}

	fmt.Println(scanner.Text())
}
