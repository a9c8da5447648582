package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alexjbarnes/notesync/internal/ledger"
	"github.com/alexjbarnes/notesync/internal/models"
)

// noteRecord is the printed form of a note.
type noteRecord struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Content   string    `json:"content" yaml:"content"`
	Tags      []string  `json:"tags" yaml:"tags,flow"`
	Mode      string    `json:"mode" yaml:"mode"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
	AISummary string    `json:"aiSummary,omitempty" yaml:"aiSummary,omitempty"`
	Pending   bool      `json:"pending" yaml:"pending"`
	Deleted   bool      `json:"deleted,omitempty" yaml:"deleted,omitempty"`
}

func toRecord(n models.Note, pending bool) noteRecord {
	return noteRecord{
		ID:        n.ID,
		Title:     n.Title,
		Content:   n.Content,
		Tags:      n.Tags,
		Mode:      string(n.Mode),
		CreatedAt: time.UnixMilli(n.CreatedAt).UTC(),
		UpdatedAt: n.Updated().UTC(),
		AISummary: n.AISummary,
		Pending:   pending,
	}
}

func printNotes(w io.Writer, format string, notes []models.Note, pending map[string]bool) error {
	records := make([]noteRecord, 0, len(notes))
	for _, n := range notes {
		records = append(records, toRecord(n, pending[n.ID]))
	}

	return printRecords(w, format, records)
}

func printPending(w io.Writer, format string, entries []ledger.Entry) error {
	records := make([]noteRecord, 0, len(entries))
	for _, e := range entries {
		r := toRecord(e.Note, true)
		r.Deleted = e.Deleted
		records = append(records, r)
	}

	return printRecords(w, format, records)
}

func printRecords(w io.Writer, format string, records []noteRecord) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(records)

	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(records); err != nil {
			return err
		}

		return enc.Close()

	case "text", "":
		return printTable(w, records)

	default:
		return fmt.Errorf("unknown output format %q (want text, json, or yaml)", format)
	}
}

// shortIDLen is how much of an id the table shows. Commands accept any
// unique prefix.
const shortIDLen = 8

func printTable(w io.Writer, records []noteRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "No notes.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tUPDATED\tMODE\tTITLE\tTAGS\t")

	for _, r := range records {
		id := r.ID
		if len(id) > shortIDLen {
			id = id[:shortIDLen]
		}

		switch {
		case r.Deleted:
			id += " x"
		case r.Pending:
			id += " *"
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
			id,
			r.UpdatedAt.Local().Format("2006-01-02 15:04"),
			r.Mode,
			r.Title,
			strings.Join(r.Tags, ", "),
		)
	}

	return tw.Flush()
}
