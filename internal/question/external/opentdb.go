package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// OpenTDB allows roughly one request per five seconds per client IP.
const defaultOpenTDBInterval = 5 * time.Second

// openTDBCategoryIDs maps app category names to the primary Open Trivia DB id.
var openTDBCategoryIDs = map[string]int{
	"Science":           17,
	"History":           23,
	"Sports":            21,
	"Entertainment":     10,
	"Geography":         22,
	"General Knowledge": 9,
	"Technology":        18,
}

// OpenTDBCategoryID resolves an app category name to its Open Trivia DB id.
func OpenTDBCategoryID(name string) (int, bool) {
	id, ok := openTDBCategoryIDs[name]
	return id, ok
}

// OpenTDBClient fetches questions from the Open Trivia DB (no API key).
type OpenTDBClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// OpenTDBOptions tunes the client; zero values pick defaults.
type OpenTDBOptions struct {
	BaseURL     string
	HTTPClient  *http.Client
	MinInterval time.Duration
}

func NewOpenTDBClient(opts OpenTDBOptions) *OpenTDBClient {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://opentdb.com"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	interval := opts.MinInterval
	if interval <= 0 {
		interval = defaultOpenTDBInterval
	}
	return &OpenTDBClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
	}
}

type OpenTDBQuestion struct {
	Category        string   `json:"category"`
	Type            string   `json:"type"`
	Difficulty      string   `json:"difficulty"`
	Question        string   `json:"question"`
	CorrectAnswer   string   `json:"correct_answer"`
	IncorrectAnswer []string `json:"incorrect_answers"`
}

type openTDBResponse struct {
	ResponseCode int               `json:"response_code"`
	Results      []OpenTDBQuestion `json:"results"`
}

// Fetch requests multiple-choice questions. categoryID 0 means any category.
func (c *OpenTDBClient) Fetch(ctx context.Context, amount, categoryID int, difficulty string) ([]OpenTDBQuestion, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("opentdb throttle: %w", err)
	}

	values := url.Values{}
	values.Set("amount", fmt.Sprint(amount))
	values.Set("type", "multiple")
	if categoryID > 0 {
		values.Set("category", fmt.Sprint(categoryID))
	}
	if difficulty != "" {
		values.Set("difficulty", difficulty)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/api.php?%s", c.baseURL, values.Encode()), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("opentdb non-200: %d", resp.StatusCode)
	}

	var payload openTDBResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode opentdb payload: %v: %w", err, ErrEmptyResults)
	}
	if err := responseCodeError(payload.ResponseCode); err != nil {
		return nil, err
	}
	if len(payload.Results) == 0 {
		return nil, ErrEmptyResults
	}
	return payload.Results, nil
}

func responseCodeError(code int) error {
	switch code {
	case 0:
		return nil
	case 1:
		return ErrNoResults
	case 2:
		return ErrInvalidParameter
	case 3:
		return ErrTokenNotFound
	case 4:
		return ErrTokenEmpty
	case 5:
		return ErrRateLimited
	default:
		return fmt.Errorf("opentdb response code %d", code)
	}
}
