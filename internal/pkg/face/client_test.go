package face

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClient_Classify_Male(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict" {
			t.Errorf("Expected /predict, got %s", r.URL.Path)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("Expected multipart file field: %v", err)
		}

		json.NewEncoder(w).Encode(apiResponse{
			FaceDetected: true,
			Gender:       "male",
			Probability:  0.93,
		})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL})

	pred, err := client.Classify(context.Background(), []byte{0xFF, 0xD8, 0xFF, 0xE0})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	p, ok := pred.MaleProbability()
	if !ok {
		t.Fatal("Expected a usable prediction")
	}
	if p != 0.93 {
		t.Errorf("Expected male probability 0.93, got %f", p)
	}
}

func TestClient_Classify_FemaleInverted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(apiResponse{
			FaceDetected: true,
			Gender:       "Female",
			Probability:  0.8,
		})
	}))
	defer server.Close()

	pred, err := NewClient(Config{BaseURL: server.URL}).Classify(context.Background(), []byte{1})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	p, ok := pred.MaleProbability()
	if !ok || math.Abs(p-0.2) > 1e-9 {
		t.Errorf("Expected inverted probability 0.2, got %f (ok=%v)", p, ok)
	}
}

func TestClient_Classify_NoFace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"face_detected": false}`))
	}))
	defer server.Close()

	pred, err := NewClient(Config{BaseURL: server.URL}).Classify(context.Background(), []byte{1})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, ok := pred.MaleProbability(); ok {
		t.Error("Expected no usable prediction when no face is detected")
	}
}

func TestClient_Classify_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	if _, err := NewClient(Config{BaseURL: server.URL}).Classify(context.Background(), []byte{1}); err == nil {
		t.Error("Expected error for non-200 response")
	}
}

func TestClient_Classify_BadProbability(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"face_detected": true, "gender": "male", "probability": 3}`))
	}))
	defer server.Close()

	if _, err := NewClient(Config{BaseURL: server.URL}).Classify(context.Background(), []byte{1}); err == nil {
		t.Error("Expected error for out-of-range probability")
	}
}

func TestClient_Ping(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("Expected /health, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	if err := NewClient(Config{BaseURL: server.URL + "/"}).Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.BaseURL != "http://localhost:8090" {
		t.Errorf("Expected BaseURL http://localhost:8090, got %s", config.BaseURL)
	}
	if config.Timeout <= 0 {
		t.Error("Expected a positive default timeout")
	}
}

func TestPrediction_NilSafe(t *testing.T) {
	var p *Prediction
	if _, ok := p.MaleProbability(); ok {
		t.Error("nil prediction should not be usable")
	}
}
