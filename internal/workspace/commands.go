package workspace

import (
	"context"
	"fmt"

	"github.com/standardbeagle/snipdex/internal/catalog"
	"github.com/standardbeagle/snipdex/internal/usage"
	"github.com/standardbeagle/snipdex/internal/view"
)

// CommandResult is what running a view command produced. Only the fields
// relevant to the command are set.
type CommandResult struct {
	Command   string           `json:"command"`
	Key       string           `json:"key,omitempty"`
	Snippet   *catalog.Snippet `json:"snippet,omitempty"`
	Layer     string           `json:"layer,omitempty"`
	Body      string           `json:"body,omitempty"`
	Locations []usage.Location `json:"locations,omitempty"`
	View      *view.View       `json:"view,omitempty"`
}

// Execute runs a command attached to a view node.
func (w *Workspace) Execute(ctx context.Context, cmd view.Command) (*CommandResult, error) {
	r := &commandRunner{ws: w}
	if cmd != nil {
		r.result.Command = cmd.Name()
	}
	if err := view.Dispatch(ctx, cmd, r); err != nil {
		return nil, err
	}
	return &r.result, nil
}

type commandRunner struct {
	ws     *Workspace
	result CommandResult
}

func (r *commandRunner) lookup(key string) (catalog.Snippet, error) {
	snap := r.ws.repo.Store().Snapshot()
	sn, ok := snap.Get(key)
	if !ok {
		return catalog.Snippet{}, fmt.Errorf("%w: %s", ErrUnknownSnippet, key)
	}
	layer, _ := snap.Layer(key)
	r.result.Key = key
	r.result.Layer = layer.String()
	return sn, nil
}

func (r *commandRunner) ShowSnippet(_ context.Context, key string) error {
	sn, err := r.lookup(key)
	if err != nil {
		return err
	}
	r.result.Snippet = &sn
	return nil
}

func (r *commandRunner) FindUsages(ctx context.Context, key string) error {
	locs, err := r.ws.FindUsages(ctx, key)
	if err != nil {
		return err
	}
	r.result.Key = key
	r.result.Locations = locs
	return nil
}

func (r *commandRunner) CopySnippet(_ context.Context, key string) error {
	sn, err := r.lookup(key)
	if err != nil {
		return err
	}
	r.result.Body = sn.BodyText()
	return nil
}

func (r *commandRunner) RefreshView(ctx context.Context) error {
	v, err := r.ws.Refresh(ctx)
	if err != nil {
		return err
	}
	r.result.View = v
	return nil
}
