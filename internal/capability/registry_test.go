package capability_test

import (
	"context"
	"testing"

	"github.com/sctg/renderpool/internal/capability"
	"github.com/sctg/renderpool/internal/model"
)

type fakeCap struct {
	name string
}

func (c *fakeCap) Name() string   { return c.name }
func (c *fakeCap) Marker() string { return "<svg" }
func (c *fakeCap) Render(ctx context.Context, input string) (string, error) {
	return "<svg/>", nil
}

func TestResolveRegisteredFormat(t *testing.T) {
	reg := capability.NewRegistry()
	mermaid := &fakeCap{name: "mermaid-cli"}
	reg.Register(model.FormatMermaid, mermaid)

	c, err := reg.Resolve(model.FormatMermaid, "graph TD; A-->B")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if c.Name() != "mermaid-cli" {
		t.Errorf("Name = %q, want mermaid-cli", c.Name())
	}
}

func TestResolveUnregisteredFormat(t *testing.T) {
	reg := capability.NewRegistry()

	_, err := reg.Resolve(model.FormatLatex, `\frac{1}{2}`)
	if err == nil {
		t.Fatal("Resolve succeeded for unregistered format, want error")
	}
}

func TestResolveAutoDetection(t *testing.T) {
	reg := capability.NewRegistry()
	mermaid := &fakeCap{name: "mermaid-cli"}
	latex := &fakeCap{name: "latex-cli"}
	reg.Register(model.FormatMermaid, mermaid)
	reg.Register(model.FormatLatex, latex)

	tests := []struct {
		input string
		want  string
	}{
		{"graph TD; A-->B", "mermaid-cli"},
		{"sequenceDiagram\n  A->>B: hi", "mermaid-cli"},
		{`\frac{a}{b}`, "latex-cli"},
		{`x = \frac{-b \pm \sqrt{b^2-4ac}}{2a}`, "latex-cli"},
		{"  \\begin{align} x &= 1 \\end{align}", "latex-cli"},
	}
	for _, tt := range tests {
		c, err := reg.Resolve(model.FormatAuto, tt.input)
		if err != nil {
			t.Fatalf("Resolve(auto, %q): %v", tt.input, err)
		}
		if c.Name() != tt.want {
			t.Errorf("Resolve(auto, %q) = %q, want %q", tt.input, c.Name(), tt.want)
		}
	}
}

func TestListSortedByFormat(t *testing.T) {
	reg := capability.NewRegistry()
	reg.Register(model.FormatMermaid, &fakeCap{name: "mermaid-cli"})
	reg.Register(model.FormatLatex, &fakeCap{name: "latex-cli"})

	infos := reg.List()
	if len(infos) != 2 {
		t.Fatalf("len(infos) = %d, want 2", len(infos))
	}
	if infos[0].Format != model.FormatLatex || infos[1].Format != model.FormatMermaid {
		t.Errorf("infos not sorted by format: %+v", infos)
	}
	if infos[0].Marker != "<svg" {
		t.Errorf("Marker = %q, want %q", infos[0].Marker, "<svg")
	}
}
