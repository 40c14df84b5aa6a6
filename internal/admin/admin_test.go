package admin

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rfmesh/rfmesh/internal/common"
)

type fakeSource struct{}

func (fakeSource) Fingerprint() common.Fingerprint { return "deadbeef" }
func (fakeSource) DirectPeers() []PeerStatus {
	return []PeerStatus{{Address: "ws://peer-1", Fingerprint: "aa11"}}
}
func (fakeSource) JoinedChannels() []string    { return []string{"#general"} }
func (fakeSource) AvailableChannels() []string { return []string{"#random"} }
func (fakeSource) PendingQueueDepths() map[string]int {
	return map[string]int{"aa11": 3}
}

func TestStatusEndpoint(t *testing.T) {
	srv := httptest.NewServer(NewRouter(fakeSource{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["fingerprint"] != "deadbeef" {
		t.Fatalf("unexpected fingerprint in response: %v", body["fingerprint"])
	}
}

func TestQueueEndpoint(t *testing.T) {
	srv := httptest.NewServer(NewRouter(fakeSource{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/queue")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body map[string]int
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["aa11"] != 3 {
		t.Fatalf("expected queue depth 3, got %v", body)
	}
}
