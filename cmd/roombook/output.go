package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"roombook/internal/api"
)

type printer struct {
	w      io.Writer
	format string
}

func newPrinter(w io.Writer, format string) (*printer, error) {
	switch format {
	case "text", "json", "yaml":
		return &printer{w: w, format: format}, nil
	}
	return nil, fmt.Errorf("unknown output format %q (text/json/yaml)", format)
}

// emit writes v as JSON or YAML, or calls text with a tab-aligned writer.
func (p *printer) emit(v any, text func(w io.Writer)) error {
	switch p.format {
	case "json":
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	text(tw)
	return tw.Flush()
}

// status reports a plain outcome, e.g. after a delete.
func (p *printer) status(msg string, fields map[string]any) error {
	if p.format == "text" {
		_, err := fmt.Fprintln(p.w, msg)
		return err
	}
	out := map[string]any{"status": msg}
	for k, v := range fields {
		out[k] = v
	}
	return p.emit(out, nil)
}

func trimLine(s string) string {
	return strings.TrimRight(s, "\r\n")
}

func day(t time.Time) string {
	return t.Format("2006-01-02")
}

// apiDay shortens an API timestamp to its day, leaving unparsable input as is.
func apiDay(s string) string {
	t, err := api.ParseDate(s)
	if err != nil {
		return s
	}
	return day(t)
}
