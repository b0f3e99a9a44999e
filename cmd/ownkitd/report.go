package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ownkit/snapshot"
)

var reportCmd = &cobra.Command{
	Use:   "report <path>",
	Short: "Print a leak report written at shutdown",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		rep, err := snapshot.Load(args[0])
		if err != nil {
			return err
		}
		return printReport(cmd.OutOrStdout(), rep, format, time.Now())
	},
}

func init() {
	reportCmd.Flags().String("format", "table", "output format (table, json, yaml)")
}

type reportEntry struct {
	ID        uint64 `json:"id" yaml:"id"`
	Type      string `json:"type" yaml:"type"`
	Ownership string `json:"ownership" yaml:"ownership"`
	Len       int    `json:"len,omitempty" yaml:"len,omitempty"`
	State     string `json:"state" yaml:"state"`
	Since     string `json:"since" yaml:"since"`
}

type reportDoc struct {
	Seq     uint64        `json:"seq" yaml:"seq"`
	Created string        `json:"created" yaml:"created"`
	Leaks   int           `json:"leaks" yaml:"leaks"`
	Blocks  []reportEntry `json:"blocks" yaml:"blocks"`
}

func toDoc(rep snapshot.Report) reportDoc {
	doc := reportDoc{
		Seq:     rep.Seq,
		Created: rep.Created.Format(time.RFC3339),
		Leaks:   rep.Leaks(),
		Blocks:  make([]reportEntry, 0, len(rep.Blocks)),
	}
	for _, b := range rep.Blocks {
		e := reportEntry{
			ID:        b.ID,
			Type:      b.Type,
			Ownership: "exclusive",
			State:     "live",
			Since:     b.Since.Format(time.RFC3339),
		}
		if b.Shared {
			e.Ownership = "shared"
		}
		if b.Array {
			e.Len = b.Len
		}
		if b.Destroyed {
			e.State = "observed"
		}
		doc.Blocks = append(doc.Blocks, e)
	}
	return doc
}

func printReport(w io.Writer, rep snapshot.Report, format string, now time.Time) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(toDoc(rep))
	case "yaml":
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(toDoc(rep)); err != nil {
			return err
		}
		return enc.Close()
	case "table":
	default:
		return errors.Newf("unknown format %q", format)
	}

	fmt.Fprintf(w, "report #%d taken %s: %d leaked, %d observed-only\n",
		rep.Seq, humanize.RelTime(rep.Created, now, "ago", "from now"),
		rep.Leaks(), len(rep.Blocks)-rep.Leaks())
	if len(rep.Blocks) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tOWNERSHIP\tSTATE\tAGE")
	for i, e := range toDoc(rep).Blocks {
		age := strings.TrimSpace(humanize.RelTime(rep.Blocks[i].Since, rep.Created, "", ""))
		typ := e.Type
		if e.Len > 0 {
			typ = fmt.Sprintf("%s[%d]", e.Type, e.Len)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			e.ID, typ, e.Ownership, e.State, age)
	}
	return tw.Flush()
}
