package tools

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/expr-lang/expr"
)

const (
	// readPreviewChars bounds how much file content a read returns.
	readPreviewChars = 1000

	// maxExpressionChars bounds calculator input; the character whitelist
	// alone does not prevent pathological nesting.
	maxExpressionChars = 512
)

func (r *Registry) registerBuiltins() {
	r.Register("web_search", webSearch, "Search the web for current information")
	r.Register("calculator", calculator, "Perform mathematical calculations")
	r.Register("file_operations", fileOperations, "Read, write, and manage files")
	r.Register("code_executor", codeExecutor, "Execute code in a safe environment")
	r.Register("weather", weather, "Get current weather information")
	r.Register("datetime", datetimeNow, "Get current date and time information")
}

// exprWhitelist strips every character outside the arithmetic set before
// evaluation. The whitelist is a first filter, not the safety boundary:
// the evaluator below accepts arithmetic only and runs no general code.
var exprWhitelist = regexp.MustCompile(`[^0-9+\-*/.() ]`)

func calculator(ctx context.Context, params map[string]any) (string, error) {
	expression := stringParam(params, "expression")
	if expression == "" {
		return "", fmt.Errorf("expression is required")
	}
	if len(expression) > maxExpressionChars {
		return "", fmt.Errorf("expression too long (%d chars, max %d)", len(expression), maxExpressionChars)
	}

	sanitized := strings.TrimSpace(exprWhitelist.ReplaceAllString(expression, ""))
	if sanitized == "" {
		return "", fmt.Errorf("expression contains no evaluable arithmetic")
	}

	out, err := expr.Eval(sanitized, nil)
	if err != nil {
		return "", fmt.Errorf("evaluate expression: %w", err)
	}
	return fmt.Sprintf("Calculation: %s = %v", expression, out), nil
}

func fileOperations(ctx context.Context, params map[string]any) (string, error) {
	operation := stringParam(params, "operation")
	path := stringParam(params, "filepath")
	content := stringParam(params, "content")
	if path == "" {
		return "", fmt.Errorf("filepath is required")
	}

	switch operation {
	case "read":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		text := string(data)
		marker := ""
		if len(text) > readPreviewChars {
			text = text[:readPreviewChars]
			marker = "..."
		}
		return fmt.Sprintf("File content:\n%s%s", text, marker), nil

	case "write":
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		return fmt.Sprintf("Successfully wrote to %s", path), nil

	case "append":
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return "", fmt.Errorf("open %s for append: %w", path, err)
		}
		defer f.Close()
		if _, err := f.WriteString(content); err != nil {
			return "", fmt.Errorf("append to %s: %w", path, err)
		}
		return fmt.Sprintf("Successfully appended to %s", path), nil

	default:
		return fmt.Sprintf("Unsupported file operation: %s", operation), nil
	}
}

// webSearch is an integration point for a real search provider; it
// returns a clearly labeled placeholder behind the standard contract.
func webSearch(ctx context.Context, params map[string]any) (string, error) {
	query := stringParam(params, "query")
	return fmt.Sprintf("Web search results for %q:\n1. Mock result 1\n2. Mock result 2\n3. Mock result 3", query), nil
}

// weather is an integration point for a real weather provider.
func weather(ctx context.Context, params map[string]any) (string, error) {
	location := stringParam(params, "location")
	return fmt.Sprintf("Weather in %s: 22°C, partly cloudy, 60%% humidity", location), nil
}

// codeExecutor mocks sandboxed execution. It never runs the submitted
// code; it only validates and echoes it.
func codeExecutor(ctx context.Context, params map[string]any) (string, error) {
	code := stringParam(params, "code")
	language := stringParam(params, "language")
	if language == "" {
		language = "python"
	}
	if !strings.EqualFold(language, "python") {
		return "Only Python code execution is currently supported.", nil
	}

	for _, pattern := range []string{"import os", "import sys", "exec", "eval", "__import__"} {
		if strings.Contains(code, pattern) {
			return fmt.Sprintf("Unsafe code detected: %s not allowed", pattern), nil
		}
	}
	return fmt.Sprintf("Code executed successfully:\n%s\n\nOutput: [Mock execution result]", code), nil
}

func datetimeNow(ctx context.Context, params map[string]any) (string, error) {
	tz := stringParam(params, "timezone")
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("unknown timezone %q", tz)
	}
	now := time.Now().In(loc)
	return fmt.Sprintf("Current date and time: %s %s", now.Format("2006-01-02 15:04:05"), tz), nil
}

func stringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}
