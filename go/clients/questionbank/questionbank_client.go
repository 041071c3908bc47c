package questionbank

import (
	"math/rand"
	"sync"
	"time"

	"github.com/mcdev12/quizclash/go/clients"
)

// Client talks to the question bank service. It is the source of every
// board the duel backend deals out.
type Client struct {
	*clients.BaseClient

	rng   *rand.Rand
	rngMu sync.Mutex
}

func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		BaseClient: clients.NewBaseClient(baseURL),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if apiKey != "" {
		c.SetHeader(APIKeyHeader, apiKey)
	}
	return c
}

func (c *Client) shuffle(n int, swap func(i, j int)) {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	c.rng.Shuffle(n, swap)
}

func (c *Client) intn(n int) int {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return c.rng.Intn(n)
}
