package analyst

import (
	"context"

	"github.com/basegraph/analystcore/common/llm"
)

// agentCompleter adapts an llm.AgentClient (tool-calling chat) into the
// simple single-turn Completer this tool needs.
type agentCompleter struct {
	client llm.AgentClient
}

// NewCompleter wraps client as a Completer.
func NewCompleter(client llm.AgentClient) Completer {
	return agentCompleter{client: client}
}

func (a agentCompleter) Complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	resp, err := a.client.ChatWithTools(ctx, llm.AgentRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: &temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
