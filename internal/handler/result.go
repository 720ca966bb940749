package handler

import (
	"encoding/json"
	"net/http"
)

// Result is the body of the automation routes: either Ok with a payload
// merged into the top level, or Fail with a reason. Both are sent with 200
// so chat automations never treat them as transport errors.
type Result struct {
	success bool
	reason  string
	fields  map[string]any
}

func Ok(fields map[string]any) Result {
	return Result{success: true, fields: fields}
}

func Fail(reason string) Result {
	return Result{reason: reason}
}

// With adds a field to the result payload.
func (r Result) With(key string, value any) Result {
	fields := make(map[string]any, len(r.fields)+1)
	for k, v := range r.fields {
		fields[k] = v
	}
	fields[key] = value
	r.fields = fields
	return r
}

func (r Result) Success() bool { return r.success }

func (r Result) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.fields)+2)
	for k, v := range r.fields {
		out[k] = v
	}
	out["success"] = r.success
	if !r.success {
		out["error"] = r.reason
	}
	return json.Marshal(out)
}

func writeResult(w http.ResponseWriter, res Result) {
	writeJSON(w, http.StatusOK, res)
}
