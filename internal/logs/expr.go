package logs

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/narvanalabs/logkeeper/internal/models"
)

// CompileExpr compiles a boolean CEL expression into a Predicate. The expression
// sees level, module, subModule, action, message, status, actor, ts_ms and the
// parsed details payload. An empty expression compiles to nil, which And ignores.
//
//	level == "error" && details.attempts > 3.0
func CompileExpr(expr string) (Predicate, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("level", cel.StringType),
		cel.Variable("module", cel.StringType),
		cel.Variable("subModule", cel.StringType),
		cel.Variable("action", cel.StringType),
		cel.Variable("message", cel.StringType),
		cel.Variable("status", cel.StringType),
		cel.Variable("actor", cel.StringType),
		cel.Variable("ts_ms", cel.IntType),
		cel.Variable("details", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("creating expression env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compiling expression: %w", iss.Err())
	}
	if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("expression must evaluate to bool, got %s", out)
	}

	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("building expression program: %w", err)
	}

	return func(e *models.LogEntry) bool {
		var details any = map[string]any{}
		if len(e.Details) > 0 {
			_ = json.Unmarshal(e.Details, &details)
		}
		out, _, err := prog.Eval(map[string]any{
			"level":     string(e.Level),
			"module":    e.Module,
			"subModule": e.SubModule,
			"action":    e.Action,
			"message":   e.Message,
			"status":    e.Status,
			"actor":     e.Actor.Key(),
			"ts_ms":     e.Timestamp.UnixMilli(),
			"details":   details,
		})
		if err != nil {
			return false
		}
		b, ok := out.Value().(bool)
		return ok && b
	}, nil
}
