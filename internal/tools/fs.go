package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/corebrain/agentcore/internal/agent"
)

// ReadFileTool reads a file confined to a Sandbox root. Grounded on the
// teacher's exec.ExecTool shape (name/description/schema/execute), adapted
// to a read-only, sandbox-confined capability instead of running shell
// commands.
type ReadFileTool struct {
	sandbox *Sandbox
}

// NewReadFileTool returns a read_file tool rooted at sandbox.
func NewReadFileTool(sandbox *Sandbox) *ReadFileTool {
	return &ReadFileTool{sandbox: sandbox}
}

func (t *ReadFileTool) Name() string               { return "read_file" }
func (t *ReadFileTool) Description() string        { return "Read a file's contents from the workspace." }
func (t *ReadFileTool) RiskLevel() agent.RiskLevel { return agent.RiskReadOnly }
func (t *ReadFileTool) Timeout() int               { return 10 }

func (t *ReadFileTool) ParametersSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Path relative to the workspace root."}
		},
		"required": ["path"]
	}`)
}

func (t *ReadFileTool) Execute(ctx context.Context, args json.RawMessage) (*agent.ToolOutput, error) {
	var input struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, agent.NewInvalidArguments("read_file", err.Error())
	}
	resolved, err := t.sandbox.Resolve(input.Path)
	if err != nil {
		return nil, agent.NewInvalidArguments("read_file", err.Error())
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, agent.NewExecutionFailed("read_file", err.Error(), err)
	}
	return &agent.ToolOutput{Content: string(data)}, nil
}

// WriteFileTool writes a file confined to a Sandbox root, reporting the
// write as an Artifact so callers can surface it without interpreting
// tool-specific content.
type WriteFileTool struct {
	sandbox *Sandbox
}

// NewWriteFileTool returns a write_file tool rooted at sandbox.
func NewWriteFileTool(sandbox *Sandbox) *WriteFileTool {
	return &WriteFileTool{sandbox: sandbox}
}

func (t *WriteFileTool) Name() string               { return "write_file" }
func (t *WriteFileTool) Description() string        { return "Write a file's contents in the workspace." }
func (t *WriteFileTool) RiskLevel() agent.RiskLevel { return agent.RiskWrite }
func (t *WriteFileTool) Timeout() int               { return 10 }

func (t *WriteFileTool) ParametersSchema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "Path relative to the workspace root."},
			"content": {"type": "string", "description": "Content to write."}
		},
		"required": ["path", "content"]
	}`)
}

func (t *WriteFileTool) Execute(ctx context.Context, args json.RawMessage) (*agent.ToolOutput, error) {
	var input struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, agent.NewInvalidArguments("write_file", err.Error())
	}
	resolved, err := t.sandbox.Resolve(input.Path)
	if err != nil {
		return nil, agent.NewInvalidArguments("write_file", err.Error())
	}
	kind := agent.ArtifactFileCreated
	if _, statErr := os.Stat(resolved); statErr == nil {
		kind = agent.ArtifactFileModified
	}
	if err := os.WriteFile(resolved, []byte(input.Content), 0o644); err != nil {
		return nil, agent.NewExecutionFailed("write_file", err.Error(), err)
	}
	return &agent.ToolOutput{
		Content:   fmt.Sprintf("wrote %d bytes to %s", len(input.Content), input.Path),
		Artifacts: []agent.Artifact{{Kind: kind, Path: input.Path}},
	}, nil
}
