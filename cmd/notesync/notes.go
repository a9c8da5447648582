package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	errs "github.com/alexjbarnes/notesync/internal/errors"
	"github.com/alexjbarnes/notesync/internal/models"
)

var (
	noteTitle   string
	noteContent string
	noteTags    string
	noteMode    string
	noteSummary string

	listMode   string
	listSearch string
	listOutput string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a note",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, out io.Writer, _ []string) error {
		a.connect(ctx)

		n, err := a.engine.CreateNote(ctx, models.Fields{
			Title:     noteTitle,
			Content:   noteContent,
			Tags:      models.ParseTags(noteTags),
			Mode:      models.Mode(noteMode),
			AISummary: noteSummary,
		})
		if n.ID == "" {
			return err
		}

		a.settle(ctx)
		fmt.Fprintln(out, n.ID)

		return err
	}),
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a note; only the given flags change",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, out io.Writer, args []string) error {
		a.connect(ctx)

		current, err := resolveNote(a, args[0])
		if err != nil {
			return err
		}

		flags := editCmdFlags()
		edit := current

		if flags["title"] {
			edit.Title = noteTitle
		}

		if flags["content"] {
			edit.Content = noteContent
		}

		if flags["tags"] {
			edit.Tags = models.ParseTags(noteTags)
		}

		if flags["mode"] {
			edit.Mode = models.Mode(noteMode)
		}

		if flags["summary"] {
			edit.AISummary = noteSummary
		}

		n, err := a.engine.UpdateNote(ctx, edit)
		if n.ID == "" {
			return err
		}

		a.settle(ctx)
		fmt.Fprintln(out, n.ID)

		return err
	}),
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(ctx context.Context, a *app, out io.Writer, args []string) error {
		a.connect(ctx)

		current, err := resolveNote(a, args[0])
		if err != nil {
			return err
		}

		err = a.engine.DeleteNote(ctx, current.ID)
		a.settle(ctx)

		if err != nil {
			return err
		}

		fmt.Fprintln(out, current.ID)

		return nil
	}),
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes, newest first",
	Args:  cobra.NoArgs,
	RunE: withApp(func(ctx context.Context, a *app, out io.Writer, _ []string) error {
		a.connect(ctx)

		var mode models.Mode

		if listMode != "" {
			m, err := models.ParseMode(listMode)
			if err != nil {
				return err
			}

			mode = m
		}

		return printNotes(out, listOutput, a.view.Filter(mode, listSearch), a.pendingSet())
	}),
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List local changes not yet confirmed by the remote service",
	Args:  cobra.NoArgs,
	RunE: withApp(func(_ context.Context, a *app, out io.Writer, _ []string) error {
		return printPending(out, listOutput, a.ledger.ListPending())
	}),
}

var modeCmd = &cobra.Command{
	Use:       "mode [work|personal]",
	Short:     "Show or set the default mode for new notes",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{string(models.ModeWork), string(models.ModePersonal)},
	RunE: withApp(func(_ context.Context, a *app, out io.Writer, args []string) error {
		if len(args) == 1 {
			if err := a.engine.SetDefaultMode(models.Mode(args[0])); err != nil {
				return err
			}
		}

		fmt.Fprintln(out, a.engine.DefaultMode())

		return nil
	}),
}

// editCmdRef points at editCmd; it breaks the initialization cycle between
// editCmd's RunE and editCmdFlags.
var editCmdRef *cobra.Command

func init() {
	editCmdRef = editCmd

	for _, c := range []*cobra.Command{createCmd, editCmd} {
		c.Flags().StringVar(&noteTitle, "title", "", "Note title")
		c.Flags().StringVar(&noteContent, "content", "", "Note body")
		c.Flags().StringVar(&noteTags, "tags", "", "Comma separated tags")
		c.Flags().StringVar(&noteMode, "mode", "", "work or personal (default: configured mode)")
		c.Flags().StringVar(&noteSummary, "summary", "", "AI summary text")
	}

	listCmd.Flags().StringVar(&listMode, "mode", "", "Only show notes in this mode")
	listCmd.Flags().StringVarP(&listSearch, "search", "s", "", "Case-insensitive match on title, content, or tags")

	for _, c := range []*cobra.Command{listCmd, pendingCmd} {
		c.Flags().StringVarP(&listOutput, "output", "o", "text", "Output format: text, json, or yaml")
	}
}

func editCmdFlags() map[string]bool {
	changed := make(map[string]bool)
	for _, name := range []string{"title", "content", "tags", "mode", "summary"} {
		changed[name] = editCmdRef.Flags().Changed(name)
	}

	return changed
}

// resolveNote finds a note by full id or unique id prefix.
func resolveNote(a *app, ref string) (models.Note, error) {
	if n, ok := a.view.Get(ref); ok {
		return n, nil
	}

	var match []models.Note

	for _, n := range a.view.CurrentNotes() {
		if strings.HasPrefix(n.ID, ref) {
			match = append(match, n)
		}
	}

	switch len(match) {
	case 1:
		return match[0], nil
	case 0:
		return models.Note{}, fmt.Errorf("%w: %s", errs.ErrNoteNotFound, ref)
	default:
		return models.Note{}, fmt.Errorf("id prefix %q matches %d notes", ref, len(match))
	}
}

// pendingSet returns the ids with unconfirmed local changes.
func (a *app) pendingSet() map[string]bool {
	out := make(map[string]bool)
	for _, e := range a.ledger.ListPending() {
		out[e.ID] = true
	}

	return out
}
