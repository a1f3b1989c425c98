package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// render writes v according to the output flags: through --jq, as JSON with
// --json, or with human otherwise.
func render(c *cli.Context, v interface{}, human func(w io.Writer)) error {
	w := c.App.Writer
	if expr := c.String("jq"); expr != "" {
		code, err := compileJQ(expr)
		if err != nil {
			return err
		}
		return renderJQ(w, code, v)
	}

	if c.Bool("json") {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	human(w)
	return nil
}

func compileJQ(expr string) (*gojq.Code, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
	}
	return code, nil
}

// renderJQ runs code over v and prints every result, one per line.
func renderJQ(w io.Writer, code *gojq.Code, v interface{}) error {
	input, err := toJQInput(v)
	if err != nil {
		return err
	}

	iter := code.Run(input)
	for {
		out, ok := iter.Next()
		if !ok {
			return nil
		}
		if err, isErr := out.(error); isErr {
			return fmt.Errorf("jq filter failed: %w", err)
		}
		if s, isString := out.(string); isString {
			fmt.Fprintln(w, s)
			continue
		}
		data, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("failed to marshal jq result: %w", err)
		}
		fmt.Fprintln(w, string(data))
	}
}

// matchesJQ reports whether every filter yields a truthy first result for v.
func matchesJQ(filters []*gojq.Code, v interface{}) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}

	input, err := toJQInput(v)
	if err != nil {
		return false, err
	}

	for _, code := range filters {
		iter := code.Run(input)
		out, ok := iter.Next()
		if !ok {
			return false, nil
		}
		if err, isErr := out.(error); isErr {
			return false, err
		}
		if !isTruthy(out) {
			return false, nil
		}
	}
	return true, nil
}

// toJQInput converts v to the generic shape gojq operates on. Numbers stay
// json.Number so lamport balances above 2^53 keep their precision.
func toJQInput(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal output: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var input interface{}
	if err := dec.Decode(&input); err != nil {
		return nil, fmt.Errorf("failed to decode output: %w", err)
	}
	return input, nil
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}
