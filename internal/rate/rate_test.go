package rate

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLimiterSpacesRequests(t *testing.T) {
	var hits []time.Time
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits = append(hits, time.Now())
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	client := WrapHTTP(NewLimiter("test", 50*time.Millisecond, time.Minute), nil)
	for i := 0; i < 3; i++ {
		resp, err := client.Get(srv.URL)
		if err != nil {
			t.Fatalf("get %d: %v", i, err)
		}
		resp.Body.Close()
	}

	if len(hits) != 3 {
		t.Fatalf("hits = %d", len(hits))
	}
	for i := 1; i < len(hits); i++ {
		if gap := hits[i].Sub(hits[i-1]); gap < 40*time.Millisecond {
			t.Errorf("request %d only %v after previous", i, gap)
		}
	}
}

func TestLimiterCoolsDownOn429(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := WrapHTTP(NewLimiter("test", time.Millisecond, time.Minute), nil)

	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	resp.Body.Close()

	_, err = client.Get(srv.URL)
	if err == nil {
		t.Fatal("expected cooldown error after 429")
	}
	var limitErr LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("err = %v, want LimitError", err)
	}
	if limitErr.Provider != "test" {
		t.Errorf("provider = %q", limitErr.Provider)
	}
}
