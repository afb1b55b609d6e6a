package domain

import "strings"

// Tool is the active editing mode of a session.
type Tool string

const (
	ToolSelect        Tool = "select"
	ToolEditText      Tool = "edit-text"
	ToolText          Tool = Tool(KindText)
	ToolHighlight     Tool = Tool(KindHighlight)
	ToolRectangle     Tool = Tool(KindRectangle)
	ToolCircle        Tool = Tool(KindCircle)
	ToolArrow         Tool = Tool(KindArrow)
	ToolFreehand      Tool = Tool(KindFreehand)
	ToolUnderline     Tool = Tool(KindUnderline)
	ToolStrikethrough Tool = Tool(KindStrikethrough)
)

var knownTools = map[Tool]struct{}{
	ToolSelect: {}, ToolEditText: {}, ToolText: {}, ToolHighlight: {},
	ToolRectangle: {}, ToolCircle: {}, ToolArrow: {}, ToolFreehand: {},
	ToolUnderline: {}, ToolStrikethrough: {},
}

// ParseTool validates a tool name.
func ParseTool(s string) (Tool, error) {
	t := Tool(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := knownTools[t]; !ok {
		return "", ErrInvalidTool
	}
	return t, nil
}

// IsShape reports whether the tool draws a box by dragging.
func (t Tool) IsShape() bool {
	switch t {
	case ToolHighlight, ToolRectangle, ToolCircle, ToolUnderline, ToolStrikethrough, ToolArrow:
		return true
	}
	return false
}

// Kind returns the annotation kind produced by a drawing tool.
func (t Tool) Kind() Kind {
	switch t {
	case ToolSelect:
		return ""
	case ToolEditText:
		return KindTextEdit
	}
	return Kind(t)
}
