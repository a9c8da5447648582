// Package mcpserver registers MCP tools that expose the note collection.
// It adapts the sync engine and the current view to the MCP SDK's tool
// handler interface.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	errs "github.com/alexjbarnes/notesync/internal/errors"
	"github.com/alexjbarnes/notesync/internal/models"
	"github.com/alexjbarnes/notesync/internal/syncer"
)

// defaultMaxResults caps note_list when the caller gives no limit.
const defaultMaxResults = 50

// Engine is the write side. *syncer.Engine satisfies this interface.
type Engine interface {
	CreateNote(ctx context.Context, f models.Fields) (models.Note, error)
	UpdateNote(ctx context.Context, edit models.Note) (models.Note, error)
	DeleteNote(ctx context.Context, id string) error
	TriggerSync(ctx context.Context) syncer.Report
}

// Notes is the read side. *view.Store satisfies this interface.
type Notes interface {
	Get(id string) (models.Note, bool)
	Filter(mode models.Mode, query string) []models.Note
}

// RegisterTools adds all note tools to the given MCP server.
func RegisterTools(server *mcp.Server, eng Engine, notes Notes) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "note_list",
		Description: "List notes newest first, optionally filtered by mode (work or personal) and a case-insensitive query over title, content, and tags.",
	}, listHandler(notes))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "note_read",
		Description: "Read a single note by id.",
	}, readHandler(notes))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "note_create",
		Description: "Create a note. Title or content must be non-blank. Works offline; the note syncs when the service is reachable.",
	}, createHandler(eng))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "note_edit",
		Description: "Edit an existing note. Only the fields provided change.",
	}, editHandler(eng, notes))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "note_delete",
		Description: "Delete a note by id.",
	}, deleteHandler(eng))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "note_sync",
		Description: "Run a reconciliation pass against the remote note service now and report the outcome.",
	}, syncHandler(eng))
}

// --- Input types ---
// The MCP SDK infers JSON schema from these struct types via jsonschema tags.

// ListInput holds parameters for note_list.
type ListInput struct {
	Mode       string `json:"mode,omitempty" jsonschema:"work or personal, empty for both"`
	Query      string `json:"query,omitempty" jsonschema:"case-insensitive text to match"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"maximum number of notes, defaults to 50"`
}

// ReadInput holds parameters for note_read.
type ReadInput struct {
	ID string `json:"id" jsonschema:"note id"`
}

// CreateInput holds parameters for note_create.
type CreateInput struct {
	Title     string   `json:"title,omitempty" jsonschema:"note title"`
	Content   string   `json:"content,omitempty" jsonschema:"note body"`
	Tags      []string `json:"tags,omitempty" jsonschema:"tags, trimmed and de-duplicated"`
	Mode      string   `json:"mode,omitempty" jsonschema:"work or personal, defaults to the configured mode"`
	AISummary string   `json:"ai_summary,omitempty" jsonschema:"summary text, generated from the title when empty"`
}

// EditInput holds parameters for note_edit. Nil fields keep their value.
type EditInput struct {
	ID        string    `json:"id" jsonschema:"note id"`
	Title     *string   `json:"title,omitempty" jsonschema:"new title"`
	Content   *string   `json:"content,omitempty" jsonschema:"new body"`
	Tags      *[]string `json:"tags,omitempty" jsonschema:"replacement tag list"`
	Mode      string    `json:"mode,omitempty" jsonschema:"work or personal"`
	AISummary *string   `json:"ai_summary,omitempty" jsonschema:"new summary text"`
}

// DeleteInput holds parameters for note_delete.
type DeleteInput struct {
	ID string `json:"id" jsonschema:"note id"`
}

// SyncInput has no parameters.
type SyncInput struct{}

// --- Output types ---

// ListResult is the note_list output.
type ListResult struct {
	Notes     []models.Note `json:"notes"`
	Total     int           `json:"total"`
	Truncated bool          `json:"truncated,omitempty"`
}

// WriteResult is the note_create and note_edit output. Warning is set when
// the remote service refused the write; the note is kept locally.
type WriteResult struct {
	Note    models.Note `json:"note"`
	Warning string      `json:"warning,omitempty"`
}

// DeleteResult is the note_delete output.
type DeleteResult struct {
	ID      string `json:"id"`
	Warning string `json:"warning,omitempty"`
}

// SyncResult is the note_sync output.
type SyncResult struct {
	Outcome   string   `json:"outcome"`
	Notes     int      `json:"notes"`
	Pushed    int      `json:"pushed"`
	Cleared   []string `json:"cleared,omitempty"`
	Conflicts int      `json:"conflicts"`
	Error     string   `json:"error,omitempty"`
}

// --- Handlers ---

func listHandler(notes Notes) mcp.ToolHandlerFor[ListInput, *ListResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input ListInput) (*mcp.CallToolResult, *ListResult, error) {
		var mode models.Mode

		if input.Mode != "" {
			m, err := models.ParseMode(input.Mode)
			if err != nil {
				return nil, nil, err
			}

			mode = m
		}

		limit := input.MaxResults
		if limit <= 0 {
			limit = defaultMaxResults
		}

		matched := notes.Filter(mode, input.Query)

		result := &ListResult{Notes: matched, Total: len(matched)}
		if result.Notes == nil {
			result.Notes = []models.Note{}
		}

		if len(matched) > limit {
			result.Notes = matched[:limit]
			result.Truncated = true
		}

		return textResult(result), result, nil
	}
}

func readHandler(notes Notes) mcp.ToolHandlerFor[ReadInput, *models.Note] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input ReadInput) (*mcp.CallToolResult, *models.Note, error) {
		n, ok := notes.Get(input.ID)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", errs.ErrNoteNotFound, input.ID)
		}

		return textResult(n), &n, nil
	}
}

func createHandler(eng Engine) mcp.ToolHandlerFor[CreateInput, *WriteResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input CreateInput) (*mcp.CallToolResult, *WriteResult, error) {
		n, err := eng.CreateNote(ctx, models.Fields{
			Title:     input.Title,
			Content:   input.Content,
			Tags:      input.Tags,
			Mode:      models.Mode(input.Mode),
			AISummary: input.AISummary,
		})

		return writeResult(n, err)
	}
}

func editHandler(eng Engine, notes Notes) mcp.ToolHandlerFor[EditInput, *WriteResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input EditInput) (*mcp.CallToolResult, *WriteResult, error) {
		current, ok := notes.Get(input.ID)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", errs.ErrNoteNotFound, input.ID)
		}

		edit := current.Clone()
		edit.Mode = models.Mode(input.Mode)

		if input.Title != nil {
			edit.Title = *input.Title
		}

		if input.Content != nil {
			edit.Content = *input.Content
		}

		if input.Tags != nil {
			edit.Tags = *input.Tags
		}

		if input.AISummary != nil {
			edit.AISummary = *input.AISummary
		}

		n, err := eng.UpdateNote(ctx, edit)

		return writeResult(n, err)
	}
}

func deleteHandler(eng Engine) mcp.ToolHandlerFor[DeleteInput, *DeleteResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeleteInput) (*mcp.CallToolResult, *DeleteResult, error) {
		err := eng.DeleteNote(ctx, input.ID)
		if err != nil && !errors.Is(err, errs.ErrRemoteRejection) {
			return nil, nil, err
		}

		result := &DeleteResult{ID: input.ID}
		if err != nil {
			result.Warning = err.Error()
		}

		return textResult(result), result, nil
	}
}

func syncHandler(eng Engine) mcp.ToolHandlerFor[SyncInput, *SyncResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ SyncInput) (*mcp.CallToolResult, *SyncResult, error) {
		r := eng.TriggerSync(ctx)

		result := &SyncResult{
			Outcome:   r.Outcome.String(),
			Notes:     r.Notes,
			Pushed:    r.Pushed,
			Cleared:   r.Cleared,
			Conflicts: len(r.Conflicts),
		}
		if r.Err != nil {
			result.Error = r.Err.Error()
		}

		return textResult(result), result, nil
	}
}

// writeResult turns a write-path return into a tool result. A rejected
// write still produced a local note, so it is reported as a warning.
func writeResult(n models.Note, err error) (*mcp.CallToolResult, *WriteResult, error) {
	if n.ID == "" {
		return nil, nil, err
	}

	result := &WriteResult{Note: n}
	if err != nil {
		result.Warning = err.Error()
	}

	return textResult(result), result, nil
}

// textResult builds a CallToolResult with JSON text content from any value.
// The SDK fills in the structured output alongside it.
func textResult(v interface{}) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("error marshaling result: %v", err)}},
			IsError: true,
		}
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
	}
}
