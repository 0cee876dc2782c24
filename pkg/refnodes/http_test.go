package refnodes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/flowforge/dagflow/pkg/types"
)

func TestHTTPNodeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer srv.Close()

	n, err := NewHTTPNode(&types.NodeSpec{ID: "n1", Type: "http"})
	if err != nil {
		t.Fatalf("NewHTTPNode: %v", err)
	}

	result := n.Execute(context.Background(), nil, map[string]interface{}{
		"config": map[string]interface{}{"url": srv.URL, "method": "GET"},
	})
	if !result.Success {
		t.Fatalf("expected success, got error: %s", result.Error)
	}
	data, ok := result.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("expected map data, got %T", result.Data)
	}
	if data["body"] != "hello" {
		t.Fatalf("expected body 'hello', got %v", data["body"])
	}
}

func TestHTTPNodeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n, _ := NewHTTPNode(&types.NodeSpec{ID: "n1", Type: "http"})
	result := n.Execute(context.Background(), nil, map[string]interface{}{
		"config": map[string]interface{}{"url": srv.URL},
	})
	if result.Success {
		t.Fatal("expected failure for 500 status")
	}
}

func TestHTTPNodeMissingURL(t *testing.T) {
	n, _ := NewHTTPNode(&types.NodeSpec{ID: "n1", Type: "http"})
	result := n.Execute(context.Background(), nil, map[string]interface{}{
		"config": map[string]interface{}{},
	})
	if result.Success {
		t.Fatal("expected failure for missing url")
	}
}

func TestHTTPNodeValidate(t *testing.T) {
	n, _ := NewHTTPNode(&types.NodeSpec{ID: "n1", Type: "http", Config: map[string]interface{}{"url": "http://example.com"}})
	if !n.Validate() {
		t.Fatal("expected Validate to pass with url set")
	}

	n2, _ := NewHTTPNode(&types.NodeSpec{ID: "n2", Type: "http"})
	if n2.Validate() {
		t.Fatal("expected Validate to fail without url")
	}
}
