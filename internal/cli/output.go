package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"studio/internal/domain"
	"studio/internal/generation"
	"studio/internal/notify"
)

type jobOutput struct {
	ID        string           `json:"id"`
	Kind      domain.JobKind   `json:"kind"`
	Status    domain.JobStatus `json:"status"`
	Progress  int              `json:"progress"`
	Result    *string          `json:"result"`
	Error     *string          `json:"error"`
	RequestID string           `json:"request_id,omitempty"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (a *app) printJob(w io.Writer, job *domain.Job) error {
	out := jobOutput{
		ID:        job.ID,
		Kind:      job.Kind,
		Status:    job.Status,
		Progress:  job.Progress,
		Result:    job.ResultURL,
		Error:     job.ErrorMessage,
		RequestID: job.RequestID,
		Message:   notify.JobMessage(a.locale, job),
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
	if a.asJSON {
		return json.NewEncoder(w).Encode(out)
	}
	fmt.Fprintf(w, "id:         %s\n", out.ID)
	fmt.Fprintf(w, "kind:       %s\n", out.Kind)
	fmt.Fprintf(w, "status:     %s\n", out.Status)
	fmt.Fprintf(w, "progress:   %d%%\n", out.Progress)
	if out.RequestID != "" {
		fmt.Fprintf(w, "request_id: %s\n", out.RequestID)
	}
	if out.Result != nil {
		fmt.Fprintf(w, "result:     %s\n", *out.Result)
	}
	if out.Error != nil {
		fmt.Fprintf(w, "error:      %s\n", *out.Error)
	}
	fmt.Fprintf(w, "message:    %s\n", out.Message)
	return nil
}

func (a *app) printState(w io.Writer, state generation.PollState) {
	if a.asJSON {
		_ = json.NewEncoder(w).Encode(state)
		return
	}
	line := fmt.Sprintf("%s %-10s %3d%%", state.JobID, state.Status, state.Progress)
	if state.Result != "" {
		line += " " + state.Result
	}
	if state.Error != "" {
		line += " error: " + state.Error
	}
	fmt.Fprintln(w, line)
}
