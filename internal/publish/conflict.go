package publish

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
)

// Action selects how an existing remote repository is handled.
type Action string

// Conflict actions.
const (
	ActionAsk    Action = "ask"
	ActionUpdate Action = "update"
	ActionRename Action = "rename"
	ActionDelete Action = "delete"
	ActionAbort  Action = "abort"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionAsk, ActionUpdate, ActionRename, ActionDelete, ActionAbort:
		return true
	}
	return false
}

// ErrAborted is returned when the upload is cancelled on a conflict.
var ErrAborted = errors.New("upload aborted")

// resolveConflict decides what to do with an existing repository and returns the name to upload into.
func (p *Publisher) resolveConflict(ctx context.Context, name string) (string, error) {
	p.console.Warn("Repository '%s' already exists on GitHub!", name)

	action := p.cfg.OnConflict
	if action == ActionAsk {
		choice, err := p.prompt.Choose("What would you like to do?", []string{
			string(ActionUpdate), string(ActionRename), string(ActionDelete), string(ActionAbort),
		}, string(ActionUpdate))
		if err != nil {
			return "", noAnswer(err)
		}
		action = Action(choice)
	}

	switch action {
	case ActionUpdate:
		p.console.Info("Will push to the existing repository")
		return name, nil
	case ActionRename:
		return p.rename(name)
	case ActionDelete:
		return p.deleteExisting(ctx, name)
	default:
		p.console.Info("Upload cancelled")
		return "", ErrAborted
	}
}

// rename asks for a new name until a valid one is given.
func (p *Publisher) rename(name string) (string, error) {
	suggestions := Suggestions(name, p.now())

	for {
		p.console.Info("Suggested names:")
		for i, s := range suggestions {
			p.console.Plain("  %d. %s", i+1, s)
		}

		def := ""
		if len(suggestions) > 0 {
			def = suggestions[0]
		}

		answer, err := p.prompt.Ask("Enter new repository name", def)
		if errors.Is(err, io.EOF) && def != "" {
			answer, err = def, nil
		}
		if err != nil {
			return "", noAnswer(err)
		}

		if err := ValidateName(answer); err != nil {
			p.console.Error("%v", err)
			continue
		}

		p.console.Info("Repository name updated to: %s", answer)
		return answer, nil
	}
}

// deleteExisting removes the remote repository after confirmation. A refusal or
// a failed deletion falls back to renaming.
func (p *Publisher) deleteExisting(ctx context.Context, name string) (string, error) {
	ok, err := p.prompt.Confirm(fmt.Sprintf("Delete repository '%s'? This cannot be undone!", name))
	if err != nil && !errors.Is(err, io.EOF) {
		return "", noAnswer(err)
	}
	if !ok {
		p.console.Info("Deletion cancelled")
		return p.rename(name)
	}

	if err := p.remote.Delete(ctx, name); err != nil {
		log.Warn().Err(err).Str("repo", name).Msg("Repository deletion failed")
		p.console.Error("Failed to delete repository: %v", err)
		return p.rename(name)
	}

	p.console.Success("Repository '%s' deleted", name)
	p.wait(ctx, p.settle)
	return name, nil
}

func noAnswer(err error) error {
	return fmt.Errorf("%w: no answer (%v)", ErrAborted, err)
}
