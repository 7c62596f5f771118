// Package tools provides a registry of named callable capabilities,
// lightweight keyword intent detection, and structured execution results.
package tools

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Func is a tool implementation. A returned error is reported to the
// caller as a structured execution failure, never propagated.
type Func func(ctx context.Context, params map[string]any) (string, error)

// Result is the stable execution contract shared by real and mocked
// tools: either Success with a Result string, or an Error string.
type Result struct {
	Success bool   `json:"success"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Call is one tool invocation request.
type Call struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CallResult pairs a tool call with its result, 1:1 and in order.
type CallResult struct {
	ToolName string `json:"tool_name"`
	Result   Result `json:"result"`
}

// Info describes a registered tool.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type entry struct {
	fn          Func
	description string
	enabled     bool
}

// Registry holds named tools and an enabled set seeded from a configured
// allow-list. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]*entry
	allowed map[string]bool
}

// NewRegistry creates a registry with the built-in tools registered.
// Tools named in enabled start enabled; everything else starts disabled.
func NewRegistry(enabled []string) *Registry {
	r := &Registry{
		tools:   make(map[string]*entry),
		allowed: make(map[string]bool, len(enabled)),
	}
	for _, name := range enabled {
		r.allowed[name] = true
	}
	r.registerBuiltins()
	return r
}

// Register adds a tool. Its enabled flag is seeded from the allow-list
// the registry was created with.
func (r *Registry) Register(name string, fn Func, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = &entry{
		fn:          fn,
		description: description,
		enabled:     r.allowed[name],
	}
}

// Enable turns a tool on. Unknown names are ignored.
func (r *Registry) Enable(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.tools[name]; ok {
		e.enabled = true
	}
}

// Disable turns a tool off. Unknown names are ignored.
func (r *Registry) Disable(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.tools[name]; ok {
		e.enabled = false
	}
}

// Available lists enabled tools sorted by name.
func (r *Registry) Available() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Info
	for name, e := range r.tools {
		if e.enabled {
			out = append(out, Info{Name: name, Description: e.description})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// intentPatterns map each tool to the phrases that suggest it. This is a
// heuristic, not a classifier; false positives and negatives are
// expected and acceptable.
var intentPatterns = map[string][]*regexp.Regexp{
	"web_search": compile(
		`search`, `look up`, `find information`, `current`, `latest`,
		`news`, `what is`, `who is`, `when did`, `recent`,
	),
	"calculator": compile(
		`calculate`, `compute`, `math`, `sum`, `multiply`, `divide`,
		`percentage`, `equation`, `\+`, `-`, `\*`, `/`,
	),
	"file_operations": compile(
		`read file`, `save`, `write file`, `create file`, `file content`,
	),
	"code_executor": compile(
		`run code`, `execute`, `python`, `script`, `program`,
	),
	"weather": compile(
		`weather`, `temperature`, `forecast`, `rain`, `sunny`, `climate`,
	),
}

func compile(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// AnalyzeToolNeed returns the enabled tools whose intent patterns match
// the message. Matching is case-insensitive; a message can match zero,
// one, or many tools.
func (r *Registry) AnalyzeToolNeed(message string) []string {
	lower := strings.ToLower(message)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var needed []string
	for _, tool := range orderedIntentTools {
		e, ok := r.tools[tool]
		if !ok || !e.enabled {
			continue
		}
		for _, pattern := range intentPatterns[tool] {
			if pattern.MatchString(lower) {
				needed = append(needed, tool)
				break
			}
		}
	}
	return needed
}

// Deterministic match order for stable output.
var orderedIntentTools = []string{
	"web_search", "calculator", "file_operations", "code_executor", "weather",
}

// Execute runs one tool. Unknown and disabled tools, and any error or
// panic raised by the tool body, are reported in the Result; Execute
// itself never fails.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (res Result) {
	// Copy the fields out under the lock; entries are mutated in place by
	// Enable and Disable.
	r.mu.RLock()
	e, ok := r.tools[name]
	var (
		fn      Func
		enabled bool
	)
	if ok {
		fn = e.fn
		enabled = e.enabled
	}
	r.mu.RUnlock()

	if !ok {
		return Result{Error: fmt.Sprintf("tool %q not found", name)}
	}
	if !enabled {
		return Result{Error: fmt.Sprintf("tool %q is disabled", name)}
	}

	defer func() {
		if rec := recover(); rec != nil {
			res = Result{Error: fmt.Sprintf("tool execution failed: %v", rec)}
		}
	}()

	out, err := fn(ctx, params)
	if err != nil {
		return Result{Error: fmt.Sprintf("tool execution failed: %s", err)}
	}
	return Result{Success: true, Result: out}
}

// ProcessToolCalls executes a batch of calls, pairing each result 1:1
// with its request in input order regardless of individual failures.
func (r *Registry) ProcessToolCalls(ctx context.Context, calls []Call) []CallResult {
	results := make([]CallResult, len(calls))
	for i, call := range calls {
		results[i] = CallResult{
			ToolName: call.Name,
			Result:   r.Execute(ctx, call.Name, call.Arguments),
		}
	}
	return results
}
