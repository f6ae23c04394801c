package application

import "strings"

// stdoutThreshold is the largest stdout returned inline without truncation.
const stdoutThreshold = 200

const truncationMarker = "..."

// ExecResponse is the JSON shape printed after every execution. StdoutSize is
// present only when the stdout was truncated, and holds the untruncated
// length so the caller can decide to re-run with full output.
type ExecResponse struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr,omitempty"`
	Error      string `json:"error,omitempty"`
	StdoutSize int    `json:"stdout_size,omitempty"`
}

// shapeResponse applies the truncation policy to a raw execution outcome.
// Stderr is dropped when it merely repeats the error backtrace.
func shapeResponse(stdout, stderr, errText string, fullOutput bool) ExecResponse {
	resp := ExecResponse{Error: errText}
	if stderr != "" && strings.TrimSpace(stderr) != strings.TrimSpace(errText) {
		resp.Stderr = stderr
	}

	runes := []rune(stdout)
	if fullOutput || len(runes) <= stdoutThreshold {
		resp.Stdout = stdout
		return resp
	}

	resp.Stdout = string(runes[:stdoutThreshold]) + truncationMarker
	resp.StdoutSize = len(runes)
	return resp
}
