package nodeconfig

import "fmt"

// TemplateError is returned when a template references a binding the node
// does not provide, or fails to execute for any other reason.
type TemplateError struct {
	Node     string
	Template string
	Err      error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("render %s with template %q: %v", e.Node, e.Template, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// RenderIOError is returned when a rendered document cannot be written to
// its destination.
type RenderIOError struct {
	Node string
	Path string
	Err  error
}

func (e *RenderIOError) Error() string {
	return fmt.Sprintf("write config for %s to %s: %v", e.Node, e.Path, e.Err)
}

func (e *RenderIOError) Unwrap() error {
	return e.Err
}
