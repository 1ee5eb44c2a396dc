package tasksvc

import (
	"strings"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/droverhq/drover/internal/task"
)

// celFilter wraps a compiled CEL program used by the admin list endpoint to
// filter rows server-side. When disabled, Eval always returns true.
type celFilter struct {
	prog    cel.Program
	enabled bool
}

func newCELFilter(expr string) (celFilter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return celFilter{enabled: false}, nil
	}
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("status", cel.StringType),
		cel.Variable("agent_mode", cel.StringType),
		cel.Variable("agent_orch", cel.StringType),
		cel.Variable("draft_status", cel.StringType),
		cel.Variable("consumer", cel.StringType),
		cel.Variable("tenant_id", cel.StringType),
		cel.Variable("proc_inst_id", cel.StringType),
		cel.Variable("start_date_ms", cel.IntType),
		cel.Variable("has_draft", cel.BoolType),
		cel.Variable("has_output", cel.BoolType),
		cel.Variable("has_feedback", cel.BoolType),
		// Current time in ms for windowed filters
		cel.Variable("now_ms", cel.IntType),
	)
	if err != nil {
		return celFilter{}, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return celFilter{}, iss.Err()
	}
	checked, iss2 := env.Check(ast)
	if iss2 != nil && iss2.Err() != nil {
		return celFilter{}, iss2.Err()
	}
	prog, err := env.Program(checked)
	if err != nil {
		return celFilter{}, err
	}
	return celFilter{prog: prog, enabled: true}, nil
}

// Eval evaluates the compiled expression against a row. When disabled,
// returns true.
func (f celFilter) Eval(t *task.Task) bool {
	if !f.enabled {
		return true
	}
	out, _, err := f.prog.Eval(map[string]any{
		"id":            t.ID,
		"status":        string(t.Status),
		"agent_mode":    string(t.AgentMode),
		"agent_orch":    t.AgentOrch,
		"draft_status":  string(t.DraftStatus),
		"consumer":      t.Consumer,
		"tenant_id":     t.TenantID,
		"proc_inst_id":  t.ProcInstID,
		"start_date_ms": t.StartDateMs,
		"has_draft":     t.Draft != nil,
		"has_output":    t.Output != nil,
		"has_feedback":  t.Feedback != nil,
		"now_ms":        time.Now().UnixMilli(),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
