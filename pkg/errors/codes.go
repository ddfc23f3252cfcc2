package errors

import (
	"bytes"
	"encoding/json"
	"sort"
)

// Code is a stable error code shared across the node and its tooling.
// Once published, codes should be treated as API-stable.
type Code string

// CodeMeta provides metadata useful for HTTP mapping, retry decisions, and documentation.
type CodeMeta struct {
	HTTPStatus  int    `json:"http_status"`
	Retryable   bool   `json:"retryable"`
	Kind        string `json:"kind"`        // client|server|security|dependency
	Description string `json:"description"` // human description
}

// ---- CTLSOCK ----
const (
	CtlBadRequest Code = "bad_request"
	CtlNotFound   Code = "not_found"
)

// ---- INTERNAL ----
const (
	Internal Code = "internal"
)

// registry is intentionally unexported; use Meta/Known/List/ExportJSON.
var registry = map[Code]CodeMeta{
	CtlBadRequest: {HTTPStatus: 400, Retryable: false, Kind: "client", Description: "malformed control-socket command"},
	CtlNotFound:   {HTTPStatus: 404, Retryable: false, Kind: "client", Description: "unknown control-socket command"},

	Internal: {HTTPStatus: 500, Retryable: true, Kind: "server", Description: "internal error"},
}

// Meta returns metadata for a code.
func Meta(code Code) (CodeMeta, bool) {
	m, ok := registry[code]
	return m, ok
}

func Known(code Code) bool {
	_, ok := registry[code]
	return ok
}

// List returns all known codes sorted.
func List() []Code {
	out := make([]Code, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ExportJSON returns stable JSON of all codes + meta.
func ExportJSON() []byte {
	type row struct {
		Code Code     `json:"code"`
		Meta CodeMeta `json:"meta"`
	}
	codes := List()
	rows := make([]row, 0, len(codes))
	for _, c := range codes {
		rows = append(rows, row{Code: c, Meta: registry[c]})
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return []byte("[]")
	}
	var buf bytes.Buffer
	_, _ = buf.Write(b)
	return buf.Bytes()
}
