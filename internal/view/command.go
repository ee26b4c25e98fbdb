package view

import (
	"context"
	"fmt"
)

// Command is an action attached to a view node. The set of variants is
// closed: only types in this package implement it.
type Command interface {
	Name() string
	isCommand()
}

// ShowSnippet opens the catalog entry for Key.
type ShowSnippet struct{ Key string }

// FindUsages lists every occurrence of Key in the corpus.
type FindUsages struct{ Key string }

// CopySnippet copies the body of Key.
type CopySnippet struct{ Key string }

// RefreshView re-derives the view without rescanning the corpus.
type RefreshView struct{}

func (ShowSnippet) Name() string { return "show_snippet" }
func (FindUsages) Name() string  { return "find_usages" }
func (CopySnippet) Name() string { return "copy_snippet" }
func (RefreshView) Name() string { return "refresh_view" }

func (ShowSnippet) isCommand() {}
func (FindUsages) isCommand()  {}
func (CopySnippet) isCommand() {}
func (RefreshView) isCommand() {}

// Handler performs commands. Dispatch routes each variant to its method.
type Handler interface {
	ShowSnippet(ctx context.Context, key string) error
	FindUsages(ctx context.Context, key string) error
	CopySnippet(ctx context.Context, key string) error
	RefreshView(ctx context.Context) error
}

func Dispatch(ctx context.Context, cmd Command, h Handler) error {
	switch c := cmd.(type) {
	case ShowSnippet:
		return h.ShowSnippet(ctx, c.Key)
	case FindUsages:
		return h.FindUsages(ctx, c.Key)
	case CopySnippet:
		return h.CopySnippet(ctx, c.Key)
	case RefreshView:
		return h.RefreshView(ctx)
	case nil:
		return fmt.Errorf("nil command")
	default:
		return fmt.Errorf("unknown command %T", cmd)
	}
}

// ParseCommand builds a command from its wire name, as sent by protocol clients.
func ParseCommand(name, key string) (Command, error) {
	var cmd Command
	switch name {
	case "show_snippet":
		cmd = ShowSnippet{Key: key}
	case "find_usages":
		cmd = FindUsages{Key: key}
	case "copy_snippet":
		cmd = CopySnippet{Key: key}
	case "refresh_view":
		return RefreshView{}, nil
	default:
		return nil, fmt.Errorf("unknown command %q", name)
	}
	if key == "" {
		return nil, fmt.Errorf("command %q requires a key", name)
	}
	return cmd, nil
}
