package stats

import (
	"encoding/json"
	"math"
	"testing"

	"statshub/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestClassifyCompleted(t *testing.T) {
	for _, status := range []any{"completed", "Completed", "finished", "FINISHED", "  completed "} {
		assert.Equal(t, model.CategoryCompleted, Classify(status), "status %v", status)
	}
}

func TestClassifyRejected(t *testing.T) {
	for _, status := range []any{3, "3", "rejected", "declined", "Declined", json.Number("3"), 3.0, int64(3)} {
		assert.Equal(t, model.CategoryRejected, Classify(status), "status %v", status)
	}
}

func TestClassifyWorkInProgress(t *testing.T) {
	statuses := []any{
		0, 1, 2, 6, "0", "1", "2", "6",
		"pending", "open", "active", "in_progress", "in-progress", "ongoing", "OPEN",
		json.Number("6"), json.RawMessage(`"active"`), json.RawMessage(`2`),
	}
	for _, status := range statuses {
		assert.Equal(t, model.CategoryWorkInProgress, Classify(status), "status %v", status)
	}
}

func TestClassifyUnclassified(t *testing.T) {
	statuses := []any{"xyz", nil, "", 4, 5, "5", 2.5, "2.5", true, []string{"completed"}, map[string]any{}, json.RawMessage(`{`)}
	for _, status := range statuses {
		assert.Equal(t, model.CategoryUnclassified, Classify(status), "status %v", status)
	}
}

func TestClassifySeparatePending(t *testing.T) {
	c := StatusClassifier{SeparatePending: true}

	for _, status := range []any{"pending", "open", 0, 1, "1"} {
		assert.Equal(t, model.CategoryPending, c.Classify(status), "status %v", status)
	}

	assert.Equal(t, model.CategoryWorkInProgress, c.Classify("active"))
	assert.Equal(t, model.CategoryWorkInProgress, c.Classify(6))
	assert.Equal(t, model.CategoryCompleted, c.Classify("finished"))
}

func TestClassifyIsPure(t *testing.T) {
	for _, status := range []any{"completed", 3, "open", "xyz"} {
		assert.Equal(t, Classify(status), Classify(status))
	}
}

func TestClassifyNumericKinds(t *testing.T) {
	tests := []struct {
		status any
		want   model.StatusCategory
	}{
		{int8(3), model.CategoryRejected},
		{int16(6), model.CategoryWorkInProgress},
		{uint(3), model.CategoryRejected},
		{uint8(2), model.CategoryWorkInProgress},
		{uint16(1), model.CategoryWorkInProgress},
		{uint32(3), model.CategoryRejected},
		{uint64(6), model.CategoryWorkInProgress},
		{float32(3), model.CategoryRejected},
		{float32(2.5), model.CategoryUnclassified},
		{uint64(math.MaxUint64), model.CategoryUnclassified},
		{1e19, model.CategoryUnclassified},
		{int8(-3), model.CategoryUnclassified},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.status), "status %T(%v)", tt.status, tt.status)
	}
}
