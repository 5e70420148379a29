// Package main provides a stress testing tool for the relationship event stream.
//
// It signs in pairs of federated users, keeps a websocket open for each one
// and repeatedly drives a follow request through send, accept, unfollow and
// withdraw, counting the events delivered back over the sockets.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Metrics tracks the test results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	CyclesCompleted      int64
	EventsReceived       int64
	Errors               int64
}

var (
	metrics    Metrics
	httpClient = &http.Client{Timeout: 5 * time.Second}
)

type user struct {
	ID    uint
	Token string
}

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	pairs := flag.Int("pairs", 10, "Number of sender/receiver pairs")
	duration := flag.Duration("duration", 30*time.Second, "Test duration")
	interval := flag.Duration("interval", 15*time.Second, "Delay between request cycles per pair")
	flag.Parse()

	log.Printf("🚀 Starting Event Stress Test")
	log.Printf("Target: %s", *host)
	log.Printf("Pairs: %d", *pairs)
	log.Printf("Duration: %v", *duration)

	run := uuid.NewString()[:8]

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	for i := 0; i < *pairs; i++ {
		sender, err := login(*host, fmt.Sprintf("s%s%d", run, i))
		if err != nil {
			log.Fatalf("❌ Login failed: %v", err)
		}
		receiver, err := login(*host, fmt.Sprintf("r%s%d", run, i))
		if err != nil {
			log.Fatalf("❌ Login failed: %v", err)
		}

		for _, u := range []user{sender, receiver} {
			wg.Add(1)
			go listen(*host, u, stopChan, &wg)
		}
		wg.Add(1)
		go drive(*host, sender, receiver, *interval, stopChan, &wg)
		time.Sleep(50 * time.Millisecond) // Stagger connections to allow ticket issuance
	}
	log.Printf("✅ Logged in %d users", *pairs*2)

	select {
	case <-time.After(*duration):
		log.Println("⏱️  Test duration reached")
	case <-interrupt:
		log.Println("🛑 Interrupted by user")
	}

	close(stopChan)
	log.Println("Waiting for clients to disconnect...")
	wg.Wait()

	printMetrics()
}

// login signs in through the federated endpoint, which creates the account
// on first use and needs no password.
func login(host, username string) (user, error) {
	var result struct {
		Token string `json:"token"`
		User  struct {
			ID uint `json:"id"`
		} `json:"user"`
	}
	status, err := call(host, http.MethodPost, "/api/auth/login/google", "", map[string]string{
		"google_id":  "stress-" + username,
		"username":   username,
		"first_name": "Stress",
		"last_name":  "Test",
	}, &result)
	if err != nil {
		return user{}, err
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return user{}, fmt.Errorf("login failed with status %d", status)
	}
	return user{ID: result.User.ID, Token: result.Token}, nil
}

func call(host, method, path, token string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, "http://"+host+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func getTicket(host, token string) (string, error) {
	var result struct {
		Ticket string `json:"ticket"`
	}
	status, err := call(host, http.MethodPost, "/api/ws/ticket", token, nil, &result)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("ticket issuance failed with status %d", status)
	}
	return result.Ticket, nil
}

func listen(host string, u user, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	ticket, err := getTicket(host, u.Token)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}

	wsURL := url.URL{Scheme: "ws", Host: host, Path: "/api/ws", RawQuery: "ticket=" + ticket}
	c, resp, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		atomic.AddInt64(&metrics.Errors, 1)
		return
	}
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	defer func() { _ = c.Close() }()

	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	go func() {
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				return
			}
			var event struct {
				Type string `json:"type"`
			}
			if json.Unmarshal(raw, &event) == nil && event.Type != "connected" {
				atomic.AddInt64(&metrics.EventsReceived, 1)
			}
		}
	}()

	<-stopChan
	_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func drive(host string, sender, receiver user, interval time.Duration, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopChan:
			return
		case <-ticker.C:
			if err := cycle(host, sender, receiver); err != nil {
				log.Printf("cycle %d->%d: %v", sender.ID, receiver.ID, err)
				atomic.AddInt64(&metrics.Errors, 1)
				continue
			}
			atomic.AddInt64(&metrics.CyclesCompleted, 1)
		}
	}
}

func cycle(host string, sender, receiver user) error {
	var request struct {
		ID uint `json:"id"`
	}
	status, err := call(host, http.MethodPost, "/api/requests", sender.Token,
		map[string]uint{"receiver_id": receiver.ID}, &request)
	if err != nil {
		return err
	}
	if status != http.StatusCreated {
		return fmt.Errorf("send request: status %d", status)
	}

	status, err = call(host, http.MethodPost, "/api/followers", receiver.Token,
		map[string]uint{"request_id": request.ID}, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("accept request: status %d", status)
	}

	status, err = call(host, http.MethodDelete, fmt.Sprintf("/api/following/%d", sender.ID), receiver.Token, nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("unfollow: status %d", status)
	}

	// Unfollowing usually clears the request already.
	status, err = call(host, http.MethodDelete, fmt.Sprintf("/api/requests/%d", request.ID), sender.Token, nil, nil)
	if err != nil {
		return err
	}
	if status != http.StatusNoContent && status != http.StatusNotFound {
		return fmt.Errorf("withdraw: status %d", status)
	}
	return nil
}

func printMetrics() {
	log.Println("\n📊 Test Results")
	log.Println("===============")
	log.Printf("Connections Attempted: %d", atomic.LoadInt64(&metrics.ConnectionsAttempted))
	log.Printf("Connections Successful: %d", atomic.LoadInt64(&metrics.ConnectionsSuccess))
	log.Printf("Connections Failed: %d", atomic.LoadInt64(&metrics.ConnectionsFailed))
	log.Printf("Cycles Completed: %d", atomic.LoadInt64(&metrics.CyclesCompleted))
	log.Printf("Events Received: %d", atomic.LoadInt64(&metrics.EventsReceived))
	log.Printf("Total Errors: %d", atomic.LoadInt64(&metrics.Errors))
}
