// api/schemas/schemas_test.go
package schemas_test

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vexaline/browsebench/api/schemas"
)

// TestObservationJSONTags pins the serialized field names of the agent-facing
// types. Agents key on these names, so a drift here is a contract break.
func TestObservationJSONTags(t *testing.T) {
	t.Parallel()
	testCases := []struct {
		name         string
		structRef    interface{}
		expectedTags map[string]string
	}{
		{
			name:      "Observation",
			structRef: schemas.Observation{},
			expectedTags: map[string]string{
				"GoalText":        "goal",
				"GoalParts":       "goal_object",
				"Chat":            "chat_messages",
				"URL":             "url",
				"OpenPageURLs":    "open_pages_urls",
				"ActivePage":      "active_page_index",
				"HTML":            "dom_snapshot,omitempty",
				"AXTree":          "axtree,omitempty",
				"Screenshot":      "screenshot,omitempty",
				"FocusedBid":      "focused_element_bid",
				"LastAction":      "last_action",
				"LastActionError": "last_action_error",
				"Elapsed":         "elapsed_time",
				"Session":         "-",
			},
		},
		{
			name:      "ChatMessage",
			structRef: schemas.ChatMessage{},
			expectedTags: map[string]string{
				"Role": "role",
				"Text": "text",
			},
		},
		{
			name:      "TaskResult",
			structRef: schemas.TaskResult{},
			expectedTags: map[string]string{
				"TaskID":     "task_id",
				"CumReward":  "cum_reward",
				"Elapsed":    "elapsed_time",
				"Steps":      "n_steps",
				"Success":    "success",
				"Err":        "error,omitempty",
				"Stack":      "stack,omitempty",
				"FinishedAt": "finished_at",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			st := reflect.TypeOf(tc.structRef)
			for fieldName, wantTag := range tc.expectedTags {
				field, ok := st.FieldByName(fieldName)
				if assert.True(t, ok, "field %s missing from %s", fieldName, tc.name) {
					assert.Equal(t, wantTag, field.Tag.Get("json"), "field %s", fieldName)
				}
			}
		})
	}
}
