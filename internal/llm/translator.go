package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"medgraph-search/internal/entity"
	"medgraph-search/internal/nl2cypher"
)

const (
	translateMaxTokens = 1000
	extractMaxTokens   = 500
)

// Extract pulls typed entity mentions out of the question as JSON.
func (c *Client) Extract(ctx context.Context, question string) (entity.Mentions, error) {
	text, err := c.complete(ctx, extractPrompt(question), extractMaxTokens)
	if err != nil {
		return nil, err
	}

	// The model occasionally wraps the JSON in prose; take the outermost object.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return entity.Mentions{}, nil
	}

	var mentions entity.Mentions
	if err := json.Unmarshal([]byte(text[start:end+1]), &mentions); err != nil {
		return nil, fmt.Errorf("failed to parse extracted entities: %w", err)
	}
	return mentions, nil
}

// Translate turns the question into a Cypher draft.
func (c *Client) Translate(ctx context.Context, question, schemaBlock string, bindings map[string]entity.Ref) (string, error) {
	text, err := c.complete(ctx, translatePrompt(question, schemaBlock, bindings), translateMaxTokens)
	if err != nil {
		return "", err
	}
	return stripFences(text), nil
}

// Repair produces a corrected draft from a validation failure.
func (c *Client) Repair(ctx context.Context, question, cypher string, cause *nl2cypher.ValidationError) (string, error) {
	text, err := c.complete(ctx, repairPrompt(question, cypher, cause), translateMaxTokens)
	if err != nil {
		return "", err
	}
	return stripFences(text), nil
}

var _ nl2cypher.Translator = (*Client)(nil)
