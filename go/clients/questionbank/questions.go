package questionbank

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/google/uuid"
)

// Question is one trivia question as the bank serves it. CorrectAnswer and
// Variants travel together so the backend can match submissions without a
// second round trip.
type Question struct {
	ID            uuid.UUID `json:"id"`
	Category      string    `json:"category"`
	Text          string    `json:"text"`
	CorrectAnswer string    `json:"correct_answer"`
	Variants      []string  `json:"variants,omitempty"`
	PointValue    int       `json:"point_value"`
	Difficulty    string    `json:"difficulty"`
}

type CategoriesResponse struct {
	Results  int         `json:"results"`
	Errors   interface{} `json:"errors"`
	Response []string    `json:"response"`
}

type QuestionsResponse struct {
	Results  int         `json:"results"`
	Errors   interface{} `json:"errors"`
	Response []Question  `json:"response"`
}

func (c *Client) GetCategories(ctx context.Context) ([]string, error) {
	body, err := c.Get(ctx, CategoriesEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get categories: %w", err)
	}

	var response CategoriesResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}

	if err := apiErrors(response.Errors); err != nil {
		return nil, err
	}

	return response.Response, nil
}

func (c *Client) GetQuestionsByCategory(ctx context.Context, category string) ([]Question, error) {
	endpoint := fmt.Sprintf("%s?category=%s", QuestionsEndpoint, url.QueryEscape(category))
	body, err := c.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}

	var response QuestionsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w, raw response: %s", err, string(body))
	}

	if err := apiErrors(response.Errors); err != nil {
		return nil, err
	}

	return response.Response, nil
}

func apiErrors(errs interface{}) error {
	if errs == nil {
		return nil
	}
	if errMap, ok := errs.(map[string]interface{}); ok && len(errMap) > 0 {
		return fmt.Errorf("API returned errors: %v", errs)
	}
	return nil
}
