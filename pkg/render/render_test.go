package render

import (
	"context"
	"testing"

	"github.com/solutionEPI/epi-admin/pkg/form"
	"github.com/solutionEPI/epi-admin/pkg/schema"
	"github.com/solutionEPI/epi-admin/pkg/table"
)

type fakeRenderer struct{ name string }

func (f fakeRenderer) Name() string        { return f.name }
func (f fakeRenderer) ContentType() string { return "text/plain" }
func (f fakeRenderer) RenderForm(context.Context, *form.Session, Options) ([]byte, error) {
	return nil, nil
}
func (f fakeRenderer) RenderTable(context.Context, table.Page, Options) ([]byte, error) {
	return nil, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(fakeRenderer{name: "tui"}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := reg.Register(fakeRenderer{name: "tui"}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}

	if _, err := reg.Get("tui"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := reg.Get("html"); err == nil {
		t.Fatal("expected unknown renderer error")
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"tui", "html"} {
		if err := reg.Register(fakeRenderer{name: name}); err != nil {
			t.Fatalf("register %q: %v", name, err)
		}
	}
	names := reg.Names()
	if len(names) != 2 || names[0] != "html" || names[1] != "tui" {
		t.Fatalf("unexpected names %v", names)
	}
}

func TestMapErrorPayload(t *testing.T) {
	s := schema.Schema{Fields: []schema.Field{{Name: "name"}, {Name: "price"}}}
	mapping := MapErrorPayload(s, map[string][]string{
		"name":             {" Name already exists ", "Name already exists"},
		"non_field_errors": {"Record conflicts with a pending import"},
		"unknown_field":    {"dropped nowhere"},
	})

	if got := mapping.Fields["name"]; len(got) != 1 || got[0] != "Name already exists" {
		t.Fatalf("unexpected field errors %v", mapping.Fields)
	}
	if len(mapping.Form) != 2 {
		t.Fatalf("unexpected form errors %v", mapping.Form)
	}
}
