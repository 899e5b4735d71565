// internal/env/chat.go
package env

import "github.com/vexaline/browsebench/api/schemas"

const greeting = "Hi! I am here to help you browse. What should I do?"

// normalizeGoal turns a task goal into its structured parts. A bare text
// goal becomes a single text part; structured goals pass through unchanged.
func normalizeGoal(g schemas.Goal) (string, []schemas.GoalPart) {
	if len(g.Parts) > 0 {
		text := g.Text
		if text == "" {
			for _, part := range g.Parts {
				if part.Type == "text" {
					text = part.Text
					break
				}
			}
		}
		return text, g.Parts
	}
	return g.Text, []schemas.GoalPart{{Type: "text", Text: g.Text}}
}

// seedTranscript builds the initial chat transcript: a greeting from the
// assistant followed by the goal as the user's request.
func seedTranscript(goalParts []schemas.GoalPart) []schemas.ChatMessage {
	chat := []schemas.ChatMessage{{Role: schemas.RoleAssistant, Text: greeting}}
	for _, part := range goalParts {
		role := schemas.RoleUser
		if part.Type == "image" {
			role = schemas.RoleUserImage
		}
		chat = append(chat, schemas.ChatMessage{Role: role, Text: part.Text})
	}
	return chat
}
