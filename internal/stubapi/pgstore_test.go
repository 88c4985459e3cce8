package stubapi

import (
	"reflect"
	"testing"
)

func TestMergePayload(t *testing.T) {
	changes := map[string]any{"id": "f-1", "name": "Pad Thai", "price": 12.5}

	got := mergePayload(changes)
	want := map[string]any{"name": "Pad Thai", "price": 12.5}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mergePayload() = %v, want %v", got, want)
	}

	// The caller's change set must not be mutated
	if _, ok := changes["id"]; !ok {
		t.Error("input map lost its id key")
	}
	if len(changes) != 3 {
		t.Errorf("input map mutated: %v", changes)
	}
}
