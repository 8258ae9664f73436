package submission

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/korjavin/mathpracticebot/models"
)

// ErrUnreadableResult is returned when the body is JSON but has no members to read.
var ErrUnreadableResult = errors.New("submission result cannot be read")

// decodeResult reads a response body the way the page script does: only a
// success member that is exactly true counts as success, any other JSON value
// takes the failure branch. A JSON null cannot be read at all.
func decodeResult(r io.Reader) (models.SubmissionResult, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return models.SubmissionResult{}, fmt.Errorf("read result body: %w", err)
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return models.SubmissionResult{}, fmt.Errorf("decode result: %w", err)
	}

	switch v := raw.(type) {
	case nil:
		return models.SubmissionResult{}, ErrUnreadableResult
	case map[string]any:
		var result models.SubmissionResult
		result.Success = v["success"] == true
		if result.Success {
			redirect, ok := v["redirect_to"]
			result.RedirectTo = locationString(redirect, ok)
		}
		return result, nil
	default:
		return models.SubmissionResult{}, nil
	}
}

// locationString converts a decoded redirect_to member to the string a page
// gets when it assigns the value to its location. A missing member becomes
// "undefined".
func locationString(v any, present bool) string {
	if !present {
		return "undefined"
	}
	switch v := v.(type) {
	case nil:
		return "null"
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			if item != nil {
				parts[i] = locationString(item, true)
			}
		}
		return strings.Join(parts, ",")
	default:
		return "[object Object]"
	}
}
