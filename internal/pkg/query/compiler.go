package query

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/airenas/go-app/pkg/goapp"
	"github.com/airenas/supaquery/internal/pkg/llm"
	"github.com/airenas/supaquery/internal/pkg/retry"
)

// LLM completes chat requests
type LLM interface {
	Complete(ctx context.Context, req *llm.Request) (string, error)
}

// Executor runs an operation against the database
type Executor interface {
	Execute(ctx context.Context, op *Operation) ([]map[string]interface{}, error)
}

// Result is a compiled and executed query response
type Result struct {
	Data           []map[string]interface{} `json:"data"`
	Error          string                   `json:"error,omitempty"`
	Message        string                   `json:"message"`
	OperationType  Kind                     `json:"operationType,omitempty"`
	Table          string                   `json:"table,omitempty"`
	GeneratedQuery string                   `json:"generatedQuery,omitempty"`
}

// Success reports if query was executed
func (r *Result) Success() bool {
	return r.Error == ""
}

// Compiler translates natural language into a database operation using the model
type Compiler struct {
	llm    LLM
	exec   Executor
	schema Schema
	prompt string
	opts   func() *retry.Opts
}

// NewCompiler creates compiler with the catalog prompt and schema
func NewCompiler(llm LLM, exec Executor, catalog *Catalog) (*Compiler, error) {
	if llm == nil {
		return nil, fmt.Errorf("no LLM")
	}
	if exec == nil {
		return nil, fmt.Errorf("no executor")
	}
	if catalog == nil {
		return nil, fmt.Errorf("no catalog")
	}
	return &Compiler{llm: llm, exec: exec, schema: catalog.Schema(), prompt: catalog.Prompt(),
		opts: func() *retry.Opts { return retry.DefaultOpts().WithName("query") }}, nil
}

var messages = map[Kind]string{
	Insert: "Insert operation successful",
	Update: "Update operation completed successfully",
	Delete: "Delete operation completed successfully",
	Select: "",
}

// Compile generates, parses and executes the query. Errors are returned inside the Result
func (c *Compiler) Compile(ctx context.Context, query string) *Result {
	res := &Result{}
	req := &llm.Request{
		Messages:    []llm.Message{{Role: "system", Content: c.prompt}, {Role: "user", Content: query}},
		Temperature: 0.2,
		MaxTokens:   200,
	}
	gen, err := retry.Do(ctx, func(ctx context.Context) (string, error) {
		return c.llm.Complete(ctx, req)
	}, c.opts())
	if err != nil {
		return failed(res, fmt.Errorf("can't generate query: %w", err))
	}
	res.GeneratedQuery = StripCode(gen)
	goapp.Log.Info().Str("generated", goapp.Sanitize(res.GeneratedQuery)).Msg("query")

	op, err := Parse(res.GeneratedQuery)
	if err != nil {
		res.OperationType, res.Table = guess(res.GeneratedQuery)
		return failed(res, err)
	}
	res.OperationType, res.Table = op.Kind, op.Table
	if err := op.Validate(c.schema); err != nil {
		return failed(res, fmt.Errorf("query rejected: %w", err))
	}
	goapp.Log.Info().Str("op", op.String()).Msg("execute")
	data, err := c.exec.Execute(ctx, op)
	if err != nil {
		return failed(res, err)
	}
	if data == nil {
		data = []map[string]interface{}{}
	}
	res.Data = data
	res.Message = messages[op.Kind]
	return res
}

func failed(res *Result, err error) *Result {
	goapp.Log.Warn().Err(err).Msg("query failed")
	res.Data = nil
	res.Error = err.Error()
	res.Message = "Error: " + err.Error()
	return res
}

var (
	fromRegexp = regexp.MustCompile(`from\(\s*['"]([A-Za-z_]\w*)['"]\s*\)`)
	kindRegexp = regexp.MustCompile(`\.(select|insert|update|delete)\s*\(`)
)

// guess extracts kind and table from a query the parser rejected
func guess(q string) (Kind, string) {
	var kind Kind
	var table string
	if m := fromRegexp.FindStringSubmatch(q); len(m) == 2 {
		table = m[1]
	}
	if m := kindRegexp.FindStringSubmatch(q); len(m) == 2 {
		kind = Kind(m[1])
	}
	return kind, table
}

var fenceRegexp = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// StripCode removes markdown code fences around model output
func StripCode(s string) string {
	s = strings.TrimSpace(s)
	if m := fenceRegexp.FindStringSubmatch(s); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return s
}
