package kie

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"reklamai-generation/internal/domain/model"
)

// ErrMissingTaskID is returned when a callback carries no task id.
var ErrMissingTaskID = errors.New("kie: callback without task id")

type envelope struct {
	Code *int            `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// ParseStatus decodes a record-info answer. Families disagree on where things
// live, so the record is read loosely: state from state|status, output from the
// JSON-encoded resultJson string first and flat URL fields second.
func ParseStatus(body []byte) (*model.ProviderStatusResult, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("kie: decode status: %w", err)
	}
	if env.Code != nil && *env.Code != 0 && *env.Code != 200 {
		return nil, fmt.Errorf("%w: %d - %s", ErrAPICode, *env.Code, env.Msg)
	}

	rec := map[string]any{}
	data := env.Data
	if len(data) == 0 || string(data) == "null" {
		data = body
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("kie: decode record: %w", err)
	}

	state := firstString(rec, "state", "status")
	if state == "" {
		state = string(model.GenerationStatusProcessing)
	}
	return &model.ProviderStatusResult{
		Status:    normalizeState(state),
		Progress:  parseProgress(first(rec, "progress", "percent_complete")),
		OutputURL: extractOutputURL(rec),
		Error:     firstString(rec, "failMsg", "failCode", "error", "error_message", "errorMessage"),
		Raw:       json.RawMessage(body),
	}, nil
}

// Callback is a decoded webhook delivery.
type Callback struct {
	TaskID string
	Result model.ProviderStatusResult
	// HasState is false when the payload named no state at all.
	HasState bool
}

// ParseCallback decodes a provider webhook. The task id may sit at the top level
// or under data; code 200 without a state means success; any other code with a
// message is a failure.
func ParseCallback(body []byte) (*Callback, error) {
	top := map[string]any{}
	if err := json.Unmarshal(body, &top); err != nil {
		return nil, fmt.Errorf("kie: decode callback: %w", err)
	}
	data, _ := top["data"].(map[string]any)
	if data == nil {
		data = map[string]any{}
	}

	cb := &Callback{TaskID: firstString(top, "taskId", "task_id")}
	if cb.TaskID == "" {
		cb.TaskID = firstString(data, "taskId", "task_id")
	}
	if cb.TaskID == "" {
		return nil, ErrMissingTaskID
	}

	code, hasCode := toFloat(top["code"])

	state := firstString(top, "status", "state")
	if state == "" {
		state = firstString(data, "state", "status")
	}
	if state == "" && hasCode && code == 200 {
		state = string(model.GenerationStatusSucceeded)
	}

	errMsg := firstString(data, "failMsg", "failCode")
	if errMsg == "" && hasCode && code != 200 {
		errMsg = firstString(top, "msg")
	}

	cb.Result = model.ProviderStatusResult{
		Progress:  parseProgress(data["progress"]),
		OutputURL: extractOutputURL(data),
		Error:     errMsg,
		Raw:       json.RawMessage(body),
	}
	switch {
	case errMsg != "":
		cb.Result.Status = model.GenerationStatusFailed
		cb.HasState = true
	case state != "":
		cb.Result.Status = normalizeState(state)
		cb.HasState = true
	default:
		cb.Result.Status = model.GenerationStatusProcessing
	}
	return cb, nil
}

func extractOutputURL(rec map[string]any) string {
	if res := resultJSON(rec["resultJson"]); res != nil {
		if u := firstURL(res["resultUrls"]); u != "" {
			return u
		}
		if u := firstString(res, "url", "output_url", "download_url"); u != "" {
			return u
		}
	}
	if u := firstString(rec, "output_url", "outputUrl", "result_url", "resultUrl", "download_url", "downloadUrl", "url"); u != "" {
		return u
	}
	if u := firstURL(rec["resultUrls"]); u != "" {
		return u
	}
	if resp, ok := rec["response"].(map[string]any); ok {
		if u := firstURL(resp["resultUrls"]); u != "" {
			return u
		}
		return firstString(resp, "resultUrl", "url")
	}
	return ""
}

// resultJSON accepts the JSON-encoded string the market API returns as well as
// an already-decoded object.
func resultJSON(v any) map[string]any {
	switch t := v.(type) {
	case string:
		if strings.TrimSpace(t) == "" {
			return nil
		}
		out := map[string]any{}
		if err := json.Unmarshal([]byte(t), &out); err != nil {
			return nil
		}
		return out
	case map[string]any:
		return t
	default:
		return nil
	}
}

func firstURL(v any) string {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				return s
			}
		}
	case string:
		return t
	}
	return ""
}

func first(rec map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := rec[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func firstString(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		if s := stringOf(rec[k]); s != "" {
			return s
		}
	}
	return ""
}

func stringOf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// parseProgress accepts 0..1 fractions and 0..100 percentages, numeric or string.
func parseProgress(v any) *int {
	f, ok := toFloat(v)
	if !ok || math.IsNaN(f) {
		return nil
	}
	if f > 0 && f < 1 {
		f *= 100
	}
	p := int(math.Round(math.Max(0, math.Min(100, f))))
	return &p
}
