package nodeconfig

import (
	"bytes"
	"context"
	"errors"
)

// bindings builds the values a template may reference. Keys that do not
// apply to the node are left out entirely.
func bindings(spec NodeSpec) map[string]any {
	sources := spec.Sources
	if sources == nil {
		sources = []PhysicalSource{}
	}

	extra := spec.Extra
	if extra == nil {
		extra = []ConfigItem{}
	}

	b := map[string]any{
		"Name":            spec.Name,
		"Role":            spec.Role.String(),
		"LogLevel":        spec.LogLevel,
		"LocalWorkerIP":   spec.Identity.IP().String(),
		"MAC":             spec.Identity.MAC().String(),
		"NumberOfSlots":   MaxSlots,
		"Extra":           extra,
		"WorkerID":        spec.Identity.WorkerID(),
		"HasParent":       spec.HasParent(),
		"DataPort":        DataPort,
		"RPCPort":         RPCPort,
		"CoordinatorPort": CoordinatorPort,
		"Sources":         sources,
	}

	if spec.HasParent() {
		b["CoordinatorIP"] = spec.Parent.IP().String()
		b["ParentID"] = spec.Parent.WorkerID()
	}

	return b
}

// Render executes tmpl for spec. It touches no external state.
func Render(spec NodeSpec, tmpl *Template) (RenderedConfig, error) {
	if tmpl == nil {
		return RenderedConfig{}, &TemplateError{Node: spec.Name, Err: errors.New("no template")}
	}
	if spec.Identity.IsZero() {
		return RenderedConfig{}, &TemplateError{Node: spec.Name, Template: tmpl.name, Err: errors.New("node has no allocated identity")}
	}

	var buf bytes.Buffer
	if err := tmpl.tmpl.Execute(&buf, bindings(spec)); err != nil {
		return RenderedConfig{}, &TemplateError{Node: spec.Name, Template: tmpl.name, Err: err}
	}

	return RenderedConfig{
		Node:        spec.Name,
		Content:     buf.Bytes(),
		Destination: spec.Destination,
	}, nil
}

// RenderAndDeliver renders spec and hands the document to d
func RenderAndDeliver(ctx context.Context, spec NodeSpec, tmpl *Template, d Deliverer) (RenderedConfig, error) {
	rc, err := Render(spec, tmpl)
	if err != nil {
		return RenderedConfig{}, err
	}
	if err := d.Deliver(ctx, rc); err != nil {
		return rc, err
	}
	return rc, nil
}
