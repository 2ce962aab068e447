package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const loremIpsum = "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do eiusmod tempor incididunt ut labore et dolore magna aliqua. Ut enim ad minim veniam, quis nostrud exercitation ullamco laboris nisi ut aliquip ex ea commodo consequat."

var loremWords = strings.Fields(loremIpsum)

// client drives one connection through the wire protocol.
type client struct {
	name    string
	conn    net.Conn
	reader  *bufio.Reader
	writeMu sync.Mutex

	responses chan string
	pushes    atomic.Int64
}

func dial(addr, name string) (*client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	c := &client{
		name:      name,
		conn:      conn,
		reader:    bufio.NewReader(conn),
		responses: make(chan string, 64),
	}
	go c.readLoop()
	return c, nil
}

// readLoop splits the inbound stream into synchronous responses and
// asynchronous DISCUSSION_UPDATED pushes.
func (c *client) readLoop() {
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			close(c.responses)
			return
		}
		if strings.HasPrefix(line, "DISCUSSION_UPDATED|") {
			c.pushes.Add(1)
			continue
		}
		c.responses <- line
	}
}

// request sends one line and waits for the synchronous response.
func (c *client) request(line string) (string, error) {
	c.writeMu.Lock()
	_, err := c.conn.Write([]byte(line))
	c.writeMu.Unlock()
	if err != nil {
		return "", err
	}

	select {
	case resp, ok := <-c.responses:
		if !ok {
			return "", fmt.Errorf("connection closed")
		}
		return resp, nil
	case <-time.After(5 * time.Second):
		return "", fmt.Errorf("timed out waiting for response")
	}
}

func requestID() string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	b := make([]byte, 7)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}

func randomComment(names []string) string {
	n := 5 + rand.Intn(15)
	words := make([]string, 0, n+1)
	for i := 0; i < n; i++ {
		words = append(words, loremWords[rand.Intn(len(loremWords))])
	}
	// Mention someone occasionally to exercise participant fan-out.
	if rand.Intn(4) == 0 {
		words = append(words, "@"+names[rand.Intn(len(names))])
	}
	return strings.Join(words, " ")
}

func main() {
	addr := flag.String("addr", "localhost:8083", "Server address")
	numClients := flag.Int("clients", 10, "Number of concurrent clients")
	numDiscussions := flag.Int("discussions", 20, "Discussions created per client")
	numReplies := flag.Int("replies", 5, "Replies per discussion")
	flag.Parse()

	names := make([]string, *numClients)
	for i := range names {
		names[i] = fmt.Sprintf("loaduser%d", i)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		latencies []time.Duration
		requests  atomic.Int64
		failures  atomic.Int64
		totalPush atomic.Int64
	)

	start := time.Now()

	for i := 0; i < *numClients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			c, err := dial(*addr, names[i])
			if err != nil {
				log.Printf("Client %d: dial failed: %v", i, err)
				failures.Add(1)
				return
			}
			defer c.conn.Close()
			defer func() { totalPush.Add(c.pushes.Load()) }()

			timed := func(line string) (string, bool) {
				t0 := time.Now()
				resp, err := c.request(line)
				requests.Add(1)
				if err != nil || strings.HasPrefix(resp, "Error") {
					failures.Add(1)
					return "", false
				}
				mu.Lock()
				latencies = append(latencies, time.Since(t0))
				mu.Unlock()
				return resp, true
			}

			if _, ok := timed(fmt.Sprintf("%s|SIGN_IN|%s\n", requestID(), c.name)); !ok {
				return
			}

			for d := 0; d < *numDiscussions; d++ {
				reference := fmt.Sprintf("video%d.%ds", i, d)
				resp, ok := timed(fmt.Sprintf("%s|CREATE_DISCUSSION|%s|%s\n",
					requestID(), reference, randomComment(names)))
				if !ok {
					continue
				}
				parts := strings.Split(strings.TrimSpace(resp), "|")
				if len(parts) < 2 {
					failures.Add(1)
					continue
				}
				discussionID := parts[1]

				for r := 0; r < *numReplies; r++ {
					timed(fmt.Sprintf("%s|CREATE_REPLY|%s|%s\n",
						requestID(), discussionID, randomComment(names)))
				}

				timed(fmt.Sprintf("%s|GET_DISCUSSION|%s\n", requestID(), discussionID))
				timed(fmt.Sprintf("%s|LIST_DISCUSSIONS|video%d\n", requestID(), i))
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	// Let the dispatch loop flush remaining notifications before counting.
	time.Sleep(500 * time.Millisecond)

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	percentile := func(p float64) time.Duration {
		if len(latencies) == 0 {
			return 0
		}
		idx := int(float64(len(latencies)-1) * p)
		return latencies[idx]
	}

	fmt.Printf("Clients:        %d\n", *numClients)
	fmt.Printf("Requests:       %d (%.0f/s)\n", requests.Load(), float64(requests.Load())/elapsed.Seconds())
	fmt.Printf("Failures:       %d\n", failures.Load())
	fmt.Printf("Pushes seen:    %d\n", totalPush.Load())
	fmt.Printf("Latency p50:    %v\n", percentile(0.50))
	fmt.Printf("Latency p95:    %v\n", percentile(0.95))
	fmt.Printf("Latency p99:    %v\n", percentile(0.99))
	fmt.Printf("Elapsed:        %v\n", elapsed)
}
