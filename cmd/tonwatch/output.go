package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// jqFlag is shared by every command that prints JSON.
var jqFlag = &cli.StringFlag{
	Name:  "jq",
	Usage: "jq expression applied to the JSON output (e.g. '.transactions[].hash')",
}

// printer writes JSON to w, optionally through a compiled jq program.
type printer struct {
	w    io.Writer
	code *gojq.Code
}

func newPrinter(w io.Writer, expr string) (*printer, error) {
	p := &printer{w: w}
	if expr == "" {
		return p, nil
	}
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
	}
	p.code, err = gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
	}
	return p, nil
}

// Print writes v as indented JSON, or every result of the jq program one per line.
func (p *printer) Print(v interface{}) error {
	if p.code == nil {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}

	// gojq only understands the generic JSON types.
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	var input interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return fmt.Errorf("failed to unmarshal output: %w", err)
	}

	iter := p.code.Run(input)
	enc := json.NewEncoder(p.w)
	for {
		out, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := out.(error); isErr {
			return fmt.Errorf("jq: %w", err)
		}
		if s, isStr := out.(string); isStr {
			// Bare strings print raw, like jq -r.
			fmt.Fprintln(p.w, s)
			continue
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
}

// PrintLine writes v as a single JSON line, for streams.
func (p *printer) PrintLine(v interface{}) error {
	if p.code == nil {
		return json.NewEncoder(p.w).Encode(v)
	}
	return p.Print(v)
}
