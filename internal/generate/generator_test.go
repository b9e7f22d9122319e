package generate

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/growthengine/opportunity-engine/internal/domain"
)

func TestTemplate_Deterministic(t *testing.T) {
	gen := Template()
	ctx := context.Background()
	profile := domain.Profile{UserID: "u-1"}
	opp := domain.Opportunity{ID: "opp-1"}
	c := Constraints{ContentType: "cover_letter"}

	first, err := gen.Generate(ctx, profile, opp, c)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second, _ := gen.Generate(ctx, profile, opp, c)
	if first.ContentRef != second.ContentRef {
		t.Fatalf("refs differ: %q vs %q", first.ContentRef, second.ContentRef)
	}
	if !strings.HasPrefix(first.ContentRef, "tpl-") {
		t.Fatalf("ref = %q", first.ContentRef)
	}

	other, _ := gen.Generate(ctx, profile, domain.Opportunity{ID: "opp-2"}, c)
	if other.ContentRef == first.ContentRef {
		t.Fatal("different opportunities share a ref")
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := gen.Generate(cancelled, profile, opp, c); err == nil {
		t.Fatal("cancelled context must error")
	}
}

func TestHTTPGenerator_Success(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(Draft{ContentRef: "remote-1", QualityScore: 0.92})
	}))
	defer srv.Close()

	g := &HTTPGenerator{Endpoint: srv.URL}
	draft, err := g.Generate(context.Background(),
		domain.Profile{UserID: "u-1"},
		domain.Opportunity{ID: "opp-1", Title: "Research Grant"},
		Constraints{ContentType: "proposal", MaxWords: 800},
	)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if draft.ContentRef != "remote-1" || draft.QualityScore != 0.92 {
		t.Fatalf("draft = %+v", draft)
	}
	if got.Profile.UserID != "u-1" || got.Constraints.MaxWords != 800 {
		t.Fatalf("request = %+v", got)
	}
}

func TestHTTPGenerator_ErrorStatuses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	g := &HTTPGenerator{Endpoint: srv.URL}
	_, err := g.Generate(context.Background(), domain.Profile{}, domain.Opportunity{}, Constraints{})
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("err = %v, want status in message", err)
	}
}

func TestHTTPGenerator_EmptyContentRefRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Draft{QualityScore: 0.9})
	}))
	defer srv.Close()

	g := &HTTPGenerator{Endpoint: srv.URL}
	if _, err := g.Generate(context.Background(), domain.Profile{}, domain.Opportunity{}, Constraints{}); err == nil {
		t.Fatal("empty content ref must error")
	}
}

func TestHTTPGenerator_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the request first or the server never observes the client
		// giving up, and Close would block on this handler.
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	g := &HTTPGenerator{Endpoint: srv.URL}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := g.Generate(ctx, domain.Profile{}, domain.Opportunity{}, Constraints{}); err == nil {
		t.Fatal("deadline expiry must error")
	}
}
