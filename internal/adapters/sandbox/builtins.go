package sandbox

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/bnema/scout-cli/internal/domain"
	"github.com/bnema/scout-cli/internal/ports"
	"go.starlark.net/lib/json"
	"go.starlark.net/starlark"
)

// bridge holds the per-execution wiring the builtins close over. One bridge
// serves one Run call; the context bounds every remote request made by the
// script.
type bridge struct {
	ctx       context.Context
	client    ports.IndexClient
	delegator ports.Delegator
}

func (b *bridge) bindings() starlark.StringDict {
	dict := starlark.StringDict{
		"search":                starlark.NewBuiltin("search", b.search),
		"impl":                  starlark.NewBuiltin("impl", b.impl),
		"callers":               starlark.NewBuiltin("callers", b.callers),
		"tests":                 starlark.NewBuiltin("tests", b.tests),
		"grep":                  starlark.NewBuiltin("grep", b.grep),
		"symbols":               starlark.NewBuiltin("symbols", b.symbols),
		"peek_file":             starlark.NewBuiltin("peek_file", b.peekFile),
		"load_buffer":           starlark.NewBuiltin("load_buffer", b.loadBuffer),
		"load_symbol":           starlark.NewBuiltin("load_symbol", b.loadSymbol),
		"create_buffer":         starlark.NewBuiltin("create_buffer", b.createBuffer),
		"peek":                  starlark.NewBuiltin("peek", b.peek),
		"list_buffers":          starlark.NewBuiltin("list_buffers", b.listBuffers),
		"delete_buffer":         starlark.NewBuiltin("delete_buffer", b.deleteBuffer),
		"set_var":               starlark.NewBuiltin("set_var", b.setVar),
		"get_var":               starlark.NewBuiltin("get_var", b.getVar),
		"list_vars":             starlark.NewBuiltin("list_vars", b.listVars),
		"set_final":             starlark.NewBuiltin("set_final", b.setFinal),
		"add_finding":           starlark.NewBuiltin("add_finding", b.addFinding),
		"llm_query":             starlark.NewBuiltin("llm_query", b.llmQuery),
		"subcall_results":       starlark.NewBuiltin("subcall_results", b.subcallResults),
		"clear_subcall_results": starlark.NewBuiltin("clear_subcall_results", b.clearSubcallResults),
		"json":                  json.Module,
	}
	return dict
}

// getField issues a GET and projects one field of the response.
func (b *bridge) getField(path string, params url.Values, field string) (starlark.Value, error) {
	result, err := b.client.Get(b.ctx, path, params)
	if err != nil {
		return nil, err
	}
	raw, ok := result[field]
	if !ok {
		switch field {
		case "content", "source":
			return starlark.String(""), nil
		default:
			return starlark.NewList(nil), nil
		}
	}
	return payloadToStarlark(raw), nil
}

func (b *bridge) search(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var query string
	limit := 20
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "query", &query, "limit?", &limit); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(limit))
	return b.getField("/symbols/search", params, "symbols")
}

func (b *bridge) impl(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var symbol, file string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "symbol", &symbol, "file", &file); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("file", file)
	return b.getField("/symbols/implementation", params, "source")
}

func (b *bridge) callers(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var symbol, file string
	limit := 50
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "symbol", &symbol, "file", &file, "limit?", &limit); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("file", file)
	params.Set("limit", strconv.Itoa(limit))
	return b.getField("/symbols/callers", params, "callers")
}

func (b *bridge) tests(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var symbol, file string
	limit := 20
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "symbol", &symbol, "file", &file, "limit?", &limit); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("file", file)
	params.Set("limit", strconv.Itoa(limit))
	return b.getField("/symbols/tests", params, "tests")
}

func (b *bridge) grep(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern string
	maxMatches := 50
	scope := "all"
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "pattern", &pattern, "max_matches?", &maxMatches, "scope?", &scope); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("pattern", pattern)
	params.Set("max_matches", strconv.Itoa(maxMatches))
	params.Set("scope", scope)
	return b.getField("/grep", params, "matches")
}

func (b *bridge) symbols(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var file, kind string
	limit := 100
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "file?", &file, "kind?", &kind, "limit?", &limit); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if file != "" {
		params.Set("file", file)
	}
	if kind != "" {
		params.Set("kind", kind)
	}
	return b.getField("/symbols", params, "symbols")
}

func (b *bridge) peekFile(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var file string
	start, end := 0, 50
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "file", &file, "start?", &start, "end?", &end); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("file", file)
	params.Set("start", strconv.Itoa(start))
	params.Set("end", strconv.Itoa(end))
	return b.getField("/peek", params, "content")
}

func (b *bridge) loadBuffer(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, file string
	start, end := 0, 100
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "file", &file, "start?", &start, "end?", &end); err != nil {
		return nil, err
	}
	result, err := b.client.Post(b.ctx, "/buffers/from-file", map[string]any{
		"name": name, "file": file, "start": start, "end": end,
	})
	if err != nil {
		return nil, err
	}
	return payloadToStarlark(result), nil
}

func (b *bridge) loadSymbol(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, symbol, file string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "symbol", &symbol, "file", &file); err != nil {
		return nil, err
	}
	result, err := b.client.Post(b.ctx, "/buffers/from-symbol", map[string]any{
		"name": name, "symbol": symbol, "file": file,
	})
	if err != nil {
		return nil, err
	}
	return payloadToStarlark(result), nil
}

func (b *bridge) createBuffer(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, content, description string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "content", &content, "description?", &description); err != nil {
		return nil, err
	}
	result, err := b.client.Post(b.ctx, "/buffers", map[string]any{
		"name": name, "content": content, "description": description,
	})
	if err != nil {
		return nil, err
	}
	return payloadToStarlark(result), nil
}

func (b *bridge) peek(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	start, end := 0, 500
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "start?", &start, "end?", &end); err != nil {
		return nil, err
	}
	params := url.Values{}
	params.Set("start", strconv.Itoa(start))
	params.Set("end", strconv.Itoa(end))
	return b.getField("/buffers/"+url.PathEscape(name)+"/peek", params, "content")
}

func (b *bridge) listBuffers(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return b.getField("/buffers", nil, "buffers")
}

func (b *bridge) deleteBuffer(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name); err != nil {
		return nil, err
	}
	if _, err := b.client.Delete(b.ctx, "/buffers/"+url.PathEscape(name)); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func (b *bridge) setVar(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var value starlark.Value
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "value", &value); err != nil {
		return nil, err
	}
	converted, ok := fromStarlark(value)
	if !ok {
		return nil, fmt.Errorf("%s: value of type %s cannot be stored", fn.Name(), value.Type())
	}
	if _, err := b.client.Post(b.ctx, "/vars", map[string]any{
		"name": name, "value": converted.Interface(),
	}); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func (b *bridge) getVar(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name); err != nil {
		return nil, err
	}
	result, err := b.client.Get(b.ctx, "/vars/"+url.PathEscape(name), nil)
	if err != nil {
		return nil, err
	}
	return payloadToStarlark(result["value"]), nil
}

func (b *bridge) listVars(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return b.getField("/vars", nil, "variables")
}

func (b *bridge) setFinal(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var value starlark.Value
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "result", &value); err != nil {
		return nil, err
	}
	return b.setVar(thread, fn, starlark.Tuple{starlark.String("Final"), value}, nil)
}

func (b *bridge) addFinding(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var text string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "text", &text); err != nil {
		return nil, err
	}

	// Missing variable or a non-list value both reset to a fresh list.
	findings := []any{}
	if result, err := b.client.Get(b.ctx, "/vars/findings", nil); err == nil {
		switch existing := result["value"].(type) {
		case []any:
			findings = existing
		case nil:
		default:
			findings = []any{existing}
		}
	}
	findings = append(findings, text)

	if _, err := b.client.Post(b.ctx, "/vars", map[string]any{
		"name": "findings", "value": findings,
	}); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func (b *bridge) llmQuery(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var prompt, contextText, chunkID string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "prompt", &prompt, "context?", &contextText, "chunk_id?", &chunkID); err != nil {
		return nil, err
	}
	result, err := b.delegator.Delegate(b.ctx, prompt, contextText, chunkID)
	if err != nil {
		return nil, err
	}
	return subcallToStarlark(result), nil
}

func (b *bridge) subcallResults(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs); err != nil {
		return nil, err
	}
	return b.getField("/subcall_results", nil, "results")
}

func (b *bridge) clearSubcallResults(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs); err != nil {
		return nil, err
	}
	if _, err := b.client.Delete(b.ctx, "/subcall_results"); err != nil {
		return nil, err
	}
	return starlark.None, nil
}

func subcallToStarlark(result domain.SubcallResult) starlark.Value {
	findings := make([]starlark.Value, 0, len(result.Findings))
	for _, f := range result.Findings {
		d := starlark.NewDict(3)
		_ = d.SetKey(starlark.String("point"), starlark.String(f.Point))
		_ = d.SetKey(starlark.String("evidence"), starlark.String(f.Evidence))
		_ = d.SetKey(starlark.String("confidence"), starlark.String(f.Confidence))
		findings = append(findings, d)
	}
	suggested := make([]starlark.Value, 0, len(result.SuggestedQueries))
	for _, q := range result.SuggestedQueries {
		suggested = append(suggested, starlark.String(q))
	}

	dict := starlark.NewDict(6)
	_ = dict.SetKey(starlark.String("chunk_id"), starlark.String(result.ChunkID))
	_ = dict.SetKey(starlark.String("query"), starlark.String(result.Query))
	_ = dict.SetKey(starlark.String("findings"), starlark.NewList(findings))
	_ = dict.SetKey(starlark.String("suggested_queries"), starlark.NewList(suggested))
	if result.AnswerIfComplete != "" {
		_ = dict.SetKey(starlark.String("answer_if_complete"), starlark.String(result.AnswerIfComplete))
	} else {
		_ = dict.SetKey(starlark.String("answer_if_complete"), starlark.None)
	}
	if result.Error != "" {
		_ = dict.SetKey(starlark.String("error"), starlark.String(result.Error))
	}
	return dict
}
