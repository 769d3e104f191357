package debug

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/dshills/keystorm-debug/internal/integration/debug/dap"
	"github.com/dshills/keystorm-debug/internal/integration/debug/models"
)

// FormatLocation returns a location string like "main.go:42".
func FormatLocation(frame dap.StackFrame) string {
	if frame.Source == nil {
		return fmt.Sprintf("<unknown>:%d", frame.Line)
	}
	name := frame.Source.Name
	if name == "" && frame.Source.Path != "" {
		name = filepath.Base(frame.Source.Path)
	}
	if name == "" {
		return fmt.Sprintf("<unknown>:%d", frame.Line)
	}
	return fmt.Sprintf("%s:%d", name, frame.Line)
}

// FormatStack renders the frames of stack, marking the current frame.
func FormatStack(stack *models.StackModel) string {
	var b strings.Builder
	current := stack.Current()
	frames := stack.Frames()
	for i, frame := range frames {
		marker := "  "
		if frame.ID == current {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s#%d %s at %s\n", marker, i, frame.Name, FormatLocation(frame))
	}

	if total := stack.Total(); len(frames) < total {
		fmt.Fprintf(&b, "  ... (%d more frames)\n", total-len(frames))
	}

	return b.String()
}

// FormatVariable returns "name: type = value", omitting an empty type. A
// variable without type or value, such as a scope, is just its name.
func FormatVariable(v dap.Variable) string {
	switch {
	case v.Type == "" && v.Value == "":
		return v.Name
	case v.Type != "":
		return fmt.Sprintf("%s: %s = %s", v.Name, v.Type, v.Value)
	default:
		return fmt.Sprintf("%s = %s", v.Name, v.Value)
	}
}

// FormatVariables renders holder as an indented tree. Nodes with children
// that have not been fetched are marked with "+".
func FormatVariables(holder *models.VariablesHolder) string {
	var b strings.Builder
	holder.Walk(func(_, depth int, node models.VariableNode) bool {
		marker := " "
		if node.Expandable() && len(node.Children) == 0 {
			marker = "+"
		}
		fmt.Fprintf(&b, "%s%s %s\n", strings.Repeat("  ", depth), marker, FormatVariable(node.Var))
		return true
	})
	return b.String()
}
