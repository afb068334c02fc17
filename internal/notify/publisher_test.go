package notify_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"boardcast/internal/api"
	"boardcast/internal/logging"
	"boardcast/internal/notify"
)

func TestHTTPPublisherPostsMessage(t *testing.T) {
	received := make(chan notify.Message, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg notify.Message
		if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
			t.Errorf("decode body: %v", err)
		}
		received <- msg
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	pub := notify.NewHTTP(server.URL, time.Second, logging.NewNop())
	job := api.JobView{JobID: "job_1", ChannelID: "ws_demo", Status: "analyzing", Progress: 10}
	if err := pub.Publish(context.Background(), "ws_demo", job); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	select {
	case msg := <-received:
		if msg.ChannelID != "ws_demo" || msg.Job.JobID != "job_1" || msg.Job.Status != "analyzing" {
			t.Fatalf("unexpected message: %#v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("notification never arrived")
	}
}

func TestHTTPPublisherReportsEndpointError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	pub := notify.NewHTTP(server.URL, time.Second, logging.NewNop())
	if err := pub.Publish(context.Background(), "ws_demo", api.JobView{JobID: "job_1"}); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}

func TestHTTPPublisherUnreachable(t *testing.T) {
	pub := notify.NewHTTP("http://127.0.0.1:1/notify", 200*time.Millisecond, logging.NewNop())
	if err := pub.Publish(context.Background(), "ws_demo", api.JobView{JobID: "job_1"}); err == nil {
		t.Fatal("expected error for unreachable endpoint")
	}
}

func TestNopPublisher(t *testing.T) {
	if err := notify.Nop().Publish(context.Background(), "ws", api.JobView{}); err != nil {
		t.Fatalf("nop publisher returned error: %v", err)
	}
}
