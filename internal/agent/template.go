package agent

import (
	"fmt"
	"strings"

	"github.com/modeld/inferd/internal/retrieval"
)

// Role is one of the three chat-template roles spec.md §6 names.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	beginOfText = "<|begin_of_text|>"
	startHeader = "<|start_header_id|>"
	endHeader   = "<|end_header_id|>"
	eotID       = "<|eot_id|>"

	toolCallOpen  = "TOOL_CALL"
	toolCallClose = "END_TOOL_CALL"

	toolResultOpen  = "TOOL_RESULT"
	toolResultClose = "END_TOOL_RESULT"
)

const systemInstruction = "You are a helpful assistant. Answer using the retrieved context when it is relevant."

const toolUseBlock = toolCallOpen + "\nname: <tool name>\nargs: <arguments>\n" + toolCallClose

// header renders one role-tagged message block, bit-exact per spec.md §6.
func header(role Role, body string) string {
	return startHeader + string(role) + endHeader + "\n" + body + eotID
}

// renderContext numbers each retrieved item as "**Source N:**\n> <text>\n",
// bit-exact per spec.md §6.
func renderContext(items []retrieval.Item) string {
	if len(items) == 0 {
		return ""
	}
	var b strings.Builder
	for i, it := range items {
		fmt.Fprintf(&b, "**Source %d:**\n> %s\n", i+1, it.Content)
	}
	return b.String()
}

// SystemPrompt builds the first turn's system message: instruction line,
// optional numbered retrieved context, optional tool-use block, then the
// first user message (spec.md §4.8 step 2, §6 chat template).
func SystemPrompt(userText string, context []retrieval.Item, toolsEnabled bool) string {
	var sys strings.Builder
	sys.WriteString(systemInstruction)
	sys.WriteString("\n")
	if ctx := renderContext(context); ctx != "" {
		sys.WriteString("\n")
		sys.WriteString(ctx)
	}
	if toolsEnabled {
		sys.WriteString("\n")
		sys.WriteString(toolUseBlock)
		sys.WriteString("\n")
	}

	var out strings.Builder
	out.WriteString(beginOfText)
	out.WriteString(header(RoleSystem, sys.String()))
	out.WriteString(header(RoleUser, userText))
	out.WriteString(startHeader + string(RoleAssistant) + endHeader + "\n")
	return out.String()
}

// TurnPrompt builds a subsequent turn's prompt: only the new user message
// plus any freshly retrieved context, no system block (spec.md §4.8 step
// 2's "otherwise" branch).
func TurnPrompt(userText string, context []retrieval.Item) string {
	body := userText
	if ctx := renderContext(context); ctx != "" {
		body = ctx + "\n" + userText
	}
	var out strings.Builder
	out.WriteString(header(RoleUser, body))
	out.WriteString(startHeader + string(RoleAssistant) + endHeader + "\n")
	return out.String()
}

// WrapToolResult encodes a tool's result (or failure) as the delimited
// block spec.md §4.8/§6 describe, fed back into the session as the next
// step's input.
func WrapToolResult(result string, failed bool) string {
	if failed {
		result = "Error: " + result
	}
	return toolResultOpen + "\n" + result + "\n" + toolResultClose
}
