// Package state renders the remote buffers and variables as a terminal view.
package state

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const valuePreviewLimit = 60

// Buffer is one remote buffer's metadata.
type Buffer struct {
	Name        string
	Description string
	Lines       int
	Size        int
}

// Variable is one remote variable with a short rendering of its value.
type Variable struct {
	Name    string
	Preview string
}

// View is the full picture the state command shows.
type View struct {
	SessionID string
	Buffers   []Buffer
	Variables []Variable
}

func renderView(view View, s styles) string {
	lines := []string{
		s.title.Render("Scout Session State"),
		s.header.Render(fmt.Sprintf("session: %s", view.SessionID)),
	}

	lines = append(lines, s.section.Render(renderBuffers(view.Buffers, s)))
	lines = append(lines, s.section.Render(renderVariables(view.Variables, s)))

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderBuffers(buffers []Buffer, s styles) string {
	parts := []string{s.name.Render(fmt.Sprintf("Buffers (%d)", len(buffers)))}
	if len(buffers) == 0 {
		parts = append(parts, s.empty.Render("  none"))
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	for _, buf := range buffers {
		line := fmt.Sprintf("  %s", s.detail.Render(buf.Name))
		meta := bufferMeta(buf)
		if meta != "" {
			line += " " + s.meta.Render(meta)
		}
		parts = append(parts, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func bufferMeta(buf Buffer) string {
	fields := make([]string, 0, 3)
	if buf.Lines > 0 {
		fields = append(fields, fmt.Sprintf("%d lines", buf.Lines))
	}
	if buf.Size > 0 {
		fields = append(fields, fmt.Sprintf("%d bytes", buf.Size))
	}
	if buf.Description != "" {
		fields = append(fields, buf.Description)
	}
	if len(fields) == 0 {
		return ""
	}
	return "(" + strings.Join(fields, ", ") + ")"
}

func renderVariables(variables []Variable, s styles) string {
	parts := []string{s.name.Render(fmt.Sprintf("Variables (%d)", len(variables)))}
	if len(variables) == 0 {
		parts = append(parts, s.empty.Render("  none"))
		return lipgloss.JoinVertical(lipgloss.Left, parts...)
	}

	for _, v := range variables {
		nameStyle := s.detail
		if v.Name == "Final" {
			nameStyle = s.final
		}
		parts = append(parts, fmt.Sprintf("  %s %s",
			nameStyle.Render(v.Name),
			s.meta.Render("= "+previewValue(v.Preview))))
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func previewValue(preview string) string {
	flattened := strings.Join(strings.Fields(preview), " ")
	runes := []rune(flattened)
	if len(runes) <= valuePreviewLimit {
		return flattened
	}
	return string(runes[:valuePreviewLimit]) + "..."
}

// FromPayload converts the combined buffers+variables payload into a View,
// tolerating absent or oddly shaped fields.
func FromPayload(sessionID string, payload map[string]any) View {
	view := View{SessionID: sessionID}

	if wrapper, ok := payload["buffers"].(map[string]any); ok {
		if items, ok := wrapper["buffers"].([]any); ok {
			for _, item := range items {
				entry, ok := item.(map[string]any)
				if !ok {
					continue
				}
				view.Buffers = append(view.Buffers, Buffer{
					Name:        stringAt(entry, "name"),
					Description: stringAt(entry, "description"),
					Lines:       intAt(entry, "lines"),
					Size:        intAt(entry, "size"),
				})
			}
		}
	}

	if wrapper, ok := payload["variables"].(map[string]any); ok {
		if items, ok := wrapper["variables"].([]any); ok {
			for _, item := range items {
				entry, ok := item.(map[string]any)
				if !ok {
					continue
				}
				view.Variables = append(view.Variables, Variable{
					Name:    stringAt(entry, "name"),
					Preview: fmt.Sprintf("%v", entry["value"]),
				})
			}
		}
	}

	return view
}

func stringAt(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func intAt(m map[string]any, key string) int {
	switch t := m[key].(type) {
	case float64:
		return int(t)
	case int:
		return t
	default:
		return 0
	}
}
