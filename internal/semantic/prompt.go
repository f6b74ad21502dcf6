package semantic

import (
	"encoding/json"
	"time"

	"prediction-feed/internal/domain"
)

const editorSystemPrompt = `You are the Editor-in-Chief of a predictive news platform.
Judge whether a prediction market belongs on a civic news front page.

Return JSON only, no other text:
{
  "is_meme": true if the market is a joke, meme, celebrity gossip or pure entertainment,
  "newsworthiness_score": integer 1-100, how time-sensitive and significant the question is,
  "category": one of politics, economy, policy, geopolitics, public_health, climate_energy, tech_ai, sports, entertainment, other,
  "geo_tag": one of US, EU, Asia, Africa, MiddleEast, World,
  "confidence": number 0-1
}`

// Prompt is a system + user prompt pair.
type Prompt struct {
	System string
	User   string
}

type promptMarket struct {
	ID           string     `json:"id"`
	Question     string     `json:"question"`
	Description  *string    `json:"description"`
	Tags         []string   `json:"tags"`
	Liquidity    *float64   `json:"liquidity"`
	Volume       *float64   `json:"volume"`
	OpenInterest *float64   `json:"open_interest"`
	EndDate      *time.Time `json:"end_date"`
}

// BuildPrompt renders the editor prompt for one market.
func BuildPrompt(m *domain.Market, promptVersion string) Prompt {
	payload := struct {
		PromptVersion string       `json:"prompt_version"`
		Market        promptMarket `json:"market"`
	}{
		PromptVersion: promptVersion,
		Market: promptMarket{
			ID:           m.ID,
			Question:     m.Question,
			Description:  m.Description,
			Tags:         m.Tags,
			Liquidity:    m.Liquidity,
			Volume:       m.Volume,
			OpenInterest: m.OpenInterest,
			EndDate:      m.EndDate,
		},
	}

	// Marshal of plain fields cannot fail.
	user, _ := json.Marshal(payload)

	return Prompt{System: editorSystemPrompt, User: string(user)}
}
