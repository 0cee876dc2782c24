package node

import (
	"context"
	"testing"

	"github.com/flowforge/dagflow/pkg/types"
)

type stubNode struct {
	spec *types.NodeSpec
}

func (s *stubNode) Execute(_ context.Context, _ map[string]interface{}, input map[string]interface{}) types.NodeResult {
	return types.NodeResult{Success: true, Data: input}
}
func (s *stubNode) Validate() bool { return true }
func (s *stubNode) Describe() Describe {
	return Describe{Description: "stub", Category: "test"}
}

func stubFactory(spec *types.NodeSpec) (Node, error) {
	return &stubNode{spec: spec}, nil
}

func TestRegisterAndFindExact(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("http", stubFactory, false, "httpRequest", "api"); err != nil {
		t.Fatal(err)
	}

	if _, canon, ok := r.Find("http"); !ok || canon != "http" {
		t.Errorf("Find(http) = %v %v", canon, ok)
	}
	if _, canon, ok := r.Find("httpRequest"); !ok || canon != "http" {
		t.Errorf("Find(httpRequest) alias should resolve to http, got %v %v", canon, ok)
	}
}

func TestFindCaseInsensitive(t *testing.T) {
	r := NewRegistry()
	r.Register("Transform", stubFactory, false)

	if _, canon, ok := r.Find("transform"); !ok || canon != "Transform" {
		t.Errorf("case-insensitive Find failed: %v %v", canon, ok)
	}
}

func TestFindSubstring(t *testing.T) {
	r := NewRegistry()
	r.Register("database", stubFactory, false)

	if _, _, ok := r.Find("data"); !ok {
		t.Error("expected substring match for 'data'")
	}
	if _, _, ok := r.Find("nonexistent"); ok {
		t.Error("expected no match for unrelated string")
	}
}

func TestRegisterOverwriteByDefault(t *testing.T) {
	r := NewRegistry()
	r.Register("code", stubFactory, false)
	err := r.Register("code", stubFactory, false)
	if err != nil {
		t.Errorf("expected overwrite to succeed by default, got %v", err)
	}
}

func TestRegisterStrictCollision(t *testing.T) {
	r := NewRegistry()
	r.Register("code", stubFactory, false)
	err := r.Register("code", stubFactory, true)
	if err == nil {
		t.Fatal("expected ErrAlreadyRegistered in strict mode")
	}
	if _, ok := err.(*ErrAlreadyRegistered); !ok {
		t.Errorf("expected *ErrAlreadyRegistered, got %T", err)
	}
}

func TestCreateFillsDefaults(t *testing.T) {
	r := NewRegistry()
	r.Register("http", stubFactory, false)

	n, err := r.Create(&types.NodeSpec{Type: "http"})
	if err != nil {
		t.Fatal(err)
	}
	sn := n.(*stubNode)
	if sn.spec.ID == "" {
		t.Error("expected generated id")
	}
	if sn.spec.Name != "http Node" {
		t.Errorf("Name = %q, want default", sn.spec.Name)
	}
}

func TestCreateUnknownType(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Create(&types.NodeSpec{Type: "nope"}); err == nil {
		t.Error("expected error for unregistered type")
	}
}
