package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
)

// BootstrapProfile describes one assistant profile to resolve at startup.
type BootstrapProfile struct {
	Name         string
	Model        string
	Instructions string
}

// EnsureProfiles resolves the monthly and quarterly profiles by name,
// creating whichever is missing, and returns their identifiers. The
// returned Pair is threaded into the orchestrator at call time; there
// are no process-wide assistant variables.
func (c *Client) EnsureProfiles(ctx context.Context, monthly, quarterly BootstrapProfile) (Pair, error) {
	existing, err := c.listProfiles(ctx)
	if err != nil {
		return Pair{}, fmt.Errorf("list assistant profiles: %w", err)
	}

	monthlyID, err := c.ensureProfile(ctx, existing, monthly)
	if err != nil {
		return Pair{}, err
	}
	quarterlyID, err := c.ensureProfile(ctx, existing, quarterly)
	if err != nil {
		return Pair{}, err
	}

	slog.Info("[Assistant] Profiles resolved",
		"monthly_id", monthlyID,
		"quarterly_id", quarterlyID)
	return Pair{MonthlyID: monthlyID, QuarterlyID: quarterlyID}, nil
}

func (c *Client) ensureProfile(ctx context.Context, existing map[string]string, profile BootstrapProfile) (string, error) {
	if id, ok := existing[profile.Name]; ok {
		return id, nil
	}

	body, err := c.doJSON(ctx, http.MethodPost, "/assistants", map[string]interface{}{
		"name":         profile.Name,
		"model":        profile.Model,
		"instructions": profile.Instructions,
	})
	if err != nil {
		return "", fmt.Errorf("create assistant profile %q: %w", profile.Name, err)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("decode assistant profile: %w", err)
	}

	slog.Info("[Assistant] Created profile", "name", profile.Name, "id", created.ID)
	return created.ID, nil
}

func (c *Client) listProfiles(ctx context.Context) (map[string]string, error) {
	body, err := c.doJSON(ctx, http.MethodGet, "/assistants?limit=100", nil)
	if err != nil {
		return nil, err
	}
	var payload struct {
		Data []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("decode assistant list: %w", err)
	}

	byName := make(map[string]string, len(payload.Data))
	for _, item := range payload.Data {
		if item.Name == "" {
			continue
		}
		byName[item.Name] = item.ID
	}
	return byName, nil
}
