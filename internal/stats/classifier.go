package stats

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"statshub/internal/model"
)

// Classifier maps a raw status value to a category
type Classifier interface {
	Classify(raw any) model.StatusCategory
}

// StatusClassifier is the default Classifier. With SeparatePending set,
// pending and open statuses get their own bucket instead of being folded
// into work in progress.
type StatusClassifier struct {
	SeparatePending bool
}

var (
	completedWords  = map[string]bool{"completed": true, "finished": true}
	rejectedWords   = map[string]bool{"rejected": true, "declined": true}
	inProgressWords = map[string]bool{"in-progress": true, "active": true, "ongoing": true, "in_progress": true}
	pendingWords    = map[string]bool{"pending": true, "open": true}
)

// Classify applies the first matching rule: completed, rejected, in
// progress, pending, otherwise unclassified.
func (c StatusClassifier) Classify(raw any) model.StatusCategory {
	text, num, isNum := normalizeStatus(raw)

	switch {
	case completedWords[text]:
		return model.CategoryCompleted
	case rejectedWords[text] || (isNum && num == 3):
		return model.CategoryRejected
	case inProgressWords[text] || (isNum && (num == 6 || num == 2)):
		return model.CategoryWorkInProgress
	case pendingWords[text] || (isNum && (num == 1 || num == 0)):
		if c.SeparatePending {
			return model.CategoryPending
		}
		return model.CategoryWorkInProgress
	}

	return model.CategoryUnclassified
}

// Classify uses the default rules
func Classify(raw any) model.StatusCategory {
	return StatusClassifier{}.Classify(raw)
}

// normalizeStatus returns the lower-cased text form and, when the value is
// an integer or an integer string, its numeric form.
func normalizeStatus(raw any) (string, int64, bool) {
	switch v := raw.(type) {
	case nil:
		return "", 0, false
	case string:
		text := strings.ToLower(strings.TrimSpace(v))
		n, ok := parseInteger(text)
		return text, n, ok
	case json.Number:
		text := strings.TrimSpace(v.String())
		n, ok := parseInteger(text)
		return text, n, ok
	case json.RawMessage:
		var decoded any
		dec := json.NewDecoder(strings.NewReader(string(v)))
		dec.UseNumber()
		if err := dec.Decode(&decoded); err != nil {
			return "", 0, false
		}
		return normalizeStatus(decoded)
	case int:
		return signedStatus(int64(v))
	case int8:
		return signedStatus(int64(v))
	case int16:
		return signedStatus(int64(v))
	case int32:
		return signedStatus(int64(v))
	case int64:
		return signedStatus(v)
	case uint:
		return unsignedStatus(uint64(v))
	case uint8:
		return unsignedStatus(uint64(v))
	case uint16:
		return unsignedStatus(uint64(v))
	case uint32:
		return unsignedStatus(uint64(v))
	case uint64:
		return unsignedStatus(v)
	case float32:
		return floatStatus(float64(v))
	case float64:
		return floatStatus(v)
	}

	return "", 0, false
}

func signedStatus(n int64) (string, int64, bool) {
	return strconv.FormatInt(n, 10), n, true
}

// unsignedStatus keeps the text of values past MaxInt64 but never maps them to a code
func unsignedStatus(n uint64) (string, int64, bool) {
	text := strconv.FormatUint(n, 10)
	if n > math.MaxInt64 {
		return text, 0, false
	}
	return text, int64(n), true
}

func floatStatus(v float64) (string, int64, bool) {
	text := strconv.FormatFloat(v, 'f', -1, 64)
	if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) || math.Abs(v) >= math.MaxInt64 {
		return text, 0, false
	}
	return text, int64(v), true
}

func parseInteger(text string) (int64, bool) {
	if text == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil && f == math.Trunc(f) && !math.IsInf(f, 0) {
		return int64(f), true
	}
	return 0, false
}
