package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Engine evaluates the access policy for inbound commands.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine prepares the policy for evaluation.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.access_policy.decision"),
		rego.Module("access_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Input describes one inbound command for the policy.
type Input struct {
	ChatID     int64   `json:"chat_id"`
	Command    string  `json:"command"`
	AdminChats []int64 `json:"admin_chats"`
}

// Evaluate returns the policy decision, "allow" or "deny".
func (e *Engine) Evaluate(ctx context.Context, input Input) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return "allow", nil
	}
	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return "allow", nil
}

// DefaultPolicy restricts the statistics commands to the configured admin
// chats and allows everything else.
const DefaultPolicy = `
package access_policy

default decision = "allow"

admin_command {
	input.command == "/stats_users"
}

admin_command {
	input.command == "/stats_requests"
}

decision = "deny" {
	admin_command
	not is_admin
}

is_admin {
	input.admin_chats[_] == input.chat_id
}
`
