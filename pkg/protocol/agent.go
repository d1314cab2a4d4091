// Package protocol provides shared data structures used across paimy components.
// These types can be imported by external tools and integrations.
package protocol

// Requester identifies who a conversation turn is on behalf of.
type Requester struct {
	ChatID      string `json:"chat_id"`            // chat-platform user id
	DisplayName string `json:"display_name"`       // chat display name
	StoreID     string `json:"store_id,omitempty"` // task-store user id, empty when unmapped
	MessageURL  string `json:"message_url,omitempty"`
}

// Person is one entry of the people directory.
type Person struct {
	ChatID      string   `json:"chat_id"`
	StoreID     string   `json:"store_id"`
	DisplayName string   `json:"display_name"`
	StoreName   string   `json:"store_name"`
	Aliases     []string `json:"aliases,omitempty"`
	Team        string   `json:"team,omitempty"`
	Active      bool     `json:"active"`
}

// Name returns the best human readable name for p.
func (p Person) Name() string {
	if p.StoreName != "" {
		return p.StoreName
	}
	return p.DisplayName
}

// Requester converts a directory entry into a requester identity.
func (p Person) Requester() Requester {
	return Requester{ChatID: p.ChatID, DisplayName: p.Name(), StoreID: p.StoreID}
}

// TurnResponse is the outcome of one conversation turn as exposed to callers.
type TurnResponse struct {
	Response   string   `json:"response"`
	ToolsUsed  []string `json:"tools_used"`
	Rounds     int      `json:"rounds"`
	TokensUsed int      `json:"tokens_used"`
	DurationMs int64    `json:"duration_ms"`
}
