package feeds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"

	"castfeed/monitoring"
)

// Personalizer scores candidate contents for an account. Scores are opaque
// floats; a nil map means "no scores available" and callers must fall back
// to candidate order instead of failing the feed request.
type Personalizer interface {
	PersonalizeContents(ctx context.Context, accountID string, contentIDs []string) (map[string]float64, error)
}

// PersonalizeClient calls the external personalization service over HTTP.
// The call is bounded by a timeout and a circuit breaker; an open breaker
// short-circuits straight to the unscored fallback.
type PersonalizeClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[map[string]float64]
}

func NewPersonalizeClient(baseURL string, timeout time.Duration) *PersonalizeClient {
	settings := gobreaker.Settings{
		Name:    "personalize",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warningf("Personalize breaker '%s' moved from %s to %s", name, from, to)
		},
	}

	return &PersonalizeClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    gobreaker.NewCircuitBreaker[map[string]float64](settings),
	}
}

type personalizeRequest struct {
	AccountID  string   `json:"accountId"`
	ContentIDs []string `json:"contents"`
}

func (c *PersonalizeClient) PersonalizeContents(
	ctx context.Context,
	accountID string,
	contentIDs []string,
) (map[string]float64, error) {
	if len(contentIDs) == 0 {
		return nil, nil
	}

	scores, err := c.breaker.Execute(func() (map[string]float64, error) {
		return c.requestScores(ctx, accountID, contentIDs)
	})
	if err != nil {
		monitoring.PersonalizeFailuresTotal.Inc()
		log.Errorf("Error personalizing contents for account '%s': %v", accountID, err)
		return nil, err
	}
	return scores, nil
}

func (c *PersonalizeClient) requestScores(
	ctx context.Context,
	accountID string,
	contentIDs []string,
) (map[string]float64, error) {
	body, err := json.Marshal(personalizeRequest{
		AccountID:  accountID,
		ContentIDs: contentIDs,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/personalize/contents",
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("personalize service returned status %d", resp.StatusCode)
	}

	var scores map[string]float64
	if err = json.NewDecoder(resp.Body).Decode(&scores); err != nil {
		return nil, err
	}
	return scores, nil
}
