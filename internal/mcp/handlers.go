package mcp

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/memoreal/internal/clock"
	"github.com/hpungsan/memoreal/internal/config"
	"github.com/hpungsan/memoreal/internal/errors"
	"github.com/hpungsan/memoreal/internal/identity"
	"github.com/hpungsan/memoreal/internal/mint"
	"github.com/hpungsan/memoreal/internal/ops"
)

// Deps are the collaborators shared by all tool handlers.
type Deps struct {
	Clock        clock.Clock
	Keypair      *identity.Keypair // nil disables create and mint
	Orchestrator *mint.Orchestrator
}

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db   *sql.DB
	cfg  *config.Config
	deps Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, deps Deps) *Handlers {
	if deps.Clock == nil {
		deps.Clock = clock.NewSystem()
	}
	return &Handlers{db: db, cfg: cfg, deps: deps}
}

// Request types for each tool

// CreateRequest represents the arguments for create.
type CreateRequest struct {
	Title          string  `json:"title,omitempty"`
	Recipient      string  `json:"recipient,omitempty"`
	Message        string  `json:"message,omitempty"`
	MediaReference string  `json:"media_reference,omitempty"`
	CapsuleType    string  `json:"capsule_type,omitempty"`
	UnlockAt       *int64  `json:"unlock_at,omitempty"`
	Location       *string `json:"location,omitempty"`
}

// ViewRequest represents the arguments for view.
type ViewRequest struct {
	ID       string  `json:"id"`
	Location *string `json:"location,omitempty"`
}

// StatusRequest represents the arguments for status.
type StatusRequest struct {
	ID string `json:"id"`
}

// ListRequest represents the arguments for list.
type ListRequest struct {
	Author      string `json:"author,omitempty"`
	CapsuleType string `json:"capsule_type,omitempty"`
	Limit       int    `json:"limit,omitempty"`
	Offset      int    `json:"offset,omitempty"`
}

// MintRequest represents the arguments for mint.
type MintRequest struct {
	ID     string  `json:"id"`
	Mint   *string `json:"mint,omitempty"`
	Name   *string `json:"name,omitempty"`
	Symbol *string `json:"symbol,omitempty"`
	URI    *string `json:"uri,omitempty"`
}

// Handler implementations

// HandleCreate handles the create tool call.
func (h *Handlers) HandleCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[CreateRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if h.deps.Keypair == nil {
		return errorResult(errors.NewInvalidRequest("no signing keypair configured")), nil
	}

	result, err := ops.Create(ctx, h.db, h.cfg, h.deps.Clock, ops.CreateInput{
		Authority:      h.deps.Keypair.Authority(),
		Title:          input.Title,
		Recipient:      input.Recipient,
		Message:        input.Message,
		MediaReference: input.MediaReference,
		Type:           input.CapsuleType,
		UnlockAt:       input.UnlockAt,
		Location:       input.Location,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleView handles the view tool call.
func (h *Handlers) HandleView(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ViewRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.View(ctx, h.db, h.deps.Clock, ops.ViewInput{
		ID:       input.ID,
		Location: input.Location,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleStatus handles the status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StatusRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Status(ctx, h.db, h.deps.Clock, ops.StatusInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(ctx, h.db, ops.ListInput{
		Author: input.Author,
		Type:   input.CapsuleType,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleMint handles the mint tool call.
func (h *Handlers) HandleMint(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[MintRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if h.deps.Keypair == nil {
		return errorResult(errors.NewInvalidRequest("no signing keypair configured")), nil
	}
	if h.deps.Orchestrator == nil {
		return errorResult(errors.NewInvalidRequest("minting is not configured")), nil
	}

	mintAddr, err := decodeKey("mint", input.Mint)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Mint(ctx, h.db, h.cfg, h.deps.Clock, h.deps.Orchestrator, ops.MintInput{
		ID:      input.ID,
		Invoker: h.deps.Keypair.Authority(),
		Mint:    mintAddr,
		Name:    input.Name,
		Symbol:  input.Symbol,
		URI:     input.URI,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if mErr, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":    mErr.Code,
			"message": mErr.Message,
			"status":  mErr.Status,
		}
		if mErr.Code == errors.ErrInternal {
			errorObj["message"] = "an internal error occurred"
		} else if mErr.Details != nil {
			errorObj["details"] = mErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
