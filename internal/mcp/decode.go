package mcp

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/memoreal/internal/errors"
	"github.com/hpungsan/memoreal/internal/identity"
)

// decode unmarshals MCP request arguments into a typed struct.
// Avoids unsafe type assertions and handles JSON decoding safely.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	args := req.GetArguments()
	b, err := json.Marshal(args)
	if err != nil {
		return result, fmt.Errorf("marshal args: %w", err)
	}
	if err := json.Unmarshal(b, &result); err != nil {
		return result, fmt.Errorf("unmarshal args: %w", err)
	}
	return result, nil
}

// decodeKey parses an optional base58 identity argument.
// Returns nil for a nil or blank value.
func decodeKey(field string, s *string) (*identity.PublicKey, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	key, err := identity.ParsePublicKey(strings.TrimSpace(*s))
	if err != nil {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("invalid %s: %v", field, err))
	}
	return &key, nil
}
