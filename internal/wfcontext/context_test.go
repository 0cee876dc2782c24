package wfcontext

import "testing"

func TestGetSetDotted(t *testing.T) {
	c := New(nil)
	c.Set("nodes.a.output", map[string]interface{}{"value": 1})

	v, ok := c.Get("nodes.a.output.value")
	if !ok || v != 1 {
		t.Fatalf("Get = %v, %v; want 1, true", v, ok)
	}
	if !c.Has("nodes.a.output.value") {
		t.Error("Has should be true")
	}
	if c.Has("nodes.a.missing") {
		t.Error("Has should be false for missing path")
	}
}

func TestRemove(t *testing.T) {
	c := New(map[string]interface{}{"a": map[string]interface{}{"b": 1}})
	c.Remove("a.b")
	if c.Has("a.b") {
		t.Error("expected a.b removed")
	}
}

func TestDeepMerge(t *testing.T) {
	c := New(map[string]interface{}{
		"a": map[string]interface{}{"x": 1, "y": 2},
		"b": []interface{}{1, 2},
	})
	c.Merge(map[string]interface{}{
		"a": map[string]interface{}{"y": 20, "z": 3},
		"b": []interface{}{3, 4},
	})

	v, _ := c.Get("a.x")
	if v != 1 {
		t.Errorf("a.x = %v, want unchanged 1", v)
	}
	v, _ = c.Get("a.y")
	if v != 20 {
		t.Errorf("a.y = %v, want overwritten 20", v)
	}
	v, _ = c.Get("a.z")
	if v != 3 {
		t.Errorf("a.z = %v, want new key 3", v)
	}
	bv, _ := c.Get("b")
	list := bv.([]interface{})
	if len(list) != 2 || list[0] != 3 {
		t.Errorf("b = %v, want replaced not concatenated", list)
	}
}

func TestVariablesFallback(t *testing.T) {
	c := New(map[string]interface{}{"a": 1})
	c.SetVariable("b", 2)

	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %v, %v", v, ok)
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Errorf("Get(b) = %v, %v", v, ok)
	}
}

func TestProcessTemplate(t *testing.T) {
	c := New(map[string]interface{}{"name": "alice"})
	c.SetVariable("greeting", "hello")

	got := c.ProcessTemplate("{{greeting}}, {{name}}!")
	if got != "hello, alice!" {
		t.Errorf("ProcessTemplate = %v", got)
	}

	got = c.ProcessTemplate("{{missing}}")
	if got != "{{missing}}" {
		t.Errorf("unresolved token should be preserved, got %v", got)
	}
}

func TestProcessTemplatesDeepWalk(t *testing.T) {
	c := New(map[string]interface{}{"id": "42"})
	tree := map[string]interface{}{
		"url":     "https://example.com/{{id}}",
		"headers": map[string]interface{}{"X-Id": "{{id}}"},
	}
	out := c.ProcessTemplates(tree).(map[string]interface{})
	if out["url"] != "https://example.com/42" {
		t.Errorf("url = %v", out["url"])
	}
	headers := out["headers"].(map[string]interface{})
	if headers["X-Id"] != "42" {
		t.Errorf("X-Id = %v", headers["X-Id"])
	}
}

func TestSnapshotIsolation(t *testing.T) {
	c := New(map[string]interface{}{"a": map[string]interface{}{"x": 1}})
	snap := c.Snapshot()

	inner := snap["a"].(map[string]interface{})
	inner["x"] = 999

	v, _ := c.Get("a.x")
	if v != 1 {
		t.Errorf("mutating snapshot leaked into context: a.x = %v", v)
	}
}

func TestSnapshotDataPriorityOverVariables(t *testing.T) {
	c := New(map[string]interface{}{"key": "from-data"})
	c.SetVariable("key", "from-variables")

	snap := c.Snapshot()
	if snap["key"] != "from-data" {
		t.Errorf("snapshot[key] = %v, want data to win", snap["key"])
	}
}
