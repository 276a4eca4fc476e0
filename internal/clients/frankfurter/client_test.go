package frankfurter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetRates_ParsesTable(t *testing.T) {
	var capturedBase string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/latest" {
			t.Errorf("expected path /latest, got %s", r.URL.Path)
		}
		capturedBase = r.URL.Query().Get("base")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"base":"USD","date":"2024-03-15","rates":{"EUR":0.92,"AUD":1.52,"JPY":148.1}}`)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	rates, err := client.GetRates(context.Background(), "USD")
	if err != nil {
		t.Fatalf("GetRates failed: %v", err)
	}

	if capturedBase != "USD" {
		t.Errorf("expected base USD, got %s", capturedBase)
	}
	if rates["EUR"] != 0.92 {
		t.Errorf("expected EUR 0.92, got %v", rates["EUR"])
	}
	if rates["AUD"] != 1.52 {
		t.Errorf("expected AUD 1.52, got %v", rates["AUD"])
	}
	if rates["USD"] != 1 {
		t.Errorf("base must map to 1, got %v", rates["USD"])
	}
}

func TestGetRates_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unknown base", http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL))
	_, err := client.GetRates(context.Background(), "XXX")
	if err == nil {
		t.Fatal("expected error on 404 response")
	}
}
