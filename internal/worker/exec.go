package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"os/exec"

	"github.com/droverhq/drover/internal/task"
)

// ExecHandler runs an external command per claim, the claim JSON on stdin and
// the final payload expected on stdout. Cancellation kills the process via
// the command context.
type ExecHandler struct {
	Name string
	Args []string
}

// Handle runs the command for one claim.
func (h *ExecHandler) Handle(ctx context.Context, claim task.Claimed) (json.RawMessage, error) {
	in, err := json.Marshal(claim)
	if err != nil {
		return nil, err
	}
	cmd := exec.CommandContext(ctx, h.Name, h.Args...)
	cmd.Stdin = bytes.NewReader(in)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	payload := bytes.TrimSpace(out.Bytes())
	if len(payload) == 0 || !json.Valid(payload) {
		// Non-JSON output is wrapped so the stored result stays structured.
		return json.Marshal(map[string]string{"text": string(payload)})
	}
	return payload, nil
}
