package llm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	// DefaultModel is the default Gemini model used for fact extraction.
	DefaultModel = "gemini-2.0-flash"
	// DefaultTimeout bounds a single completion call.
	DefaultTimeout = 90 * time.Second
)

// Client represents a client for interacting with an LLM.
type Client struct {
	apiKey      string
	modelName   string
	timeout     time.Duration
	maxTokens   int32
	temperature float32
	limiter     *rate.Limiter
	gClient     *genai.Client
}

// Options configures a Client.
type Options struct {
	APIKey            string
	Model             string
	Timeout           time.Duration
	MaxTokens         int32
	Temperature       float32
	RequestsPerMinute int // 0 disables client-side throttling
}

// TextGenerationOptions contains options for text generation
type TextGenerationOptions struct {
	MaxTokens      int32         // Maximum number of tokens to generate
	Temperature    float32       // Temperature for randomness (0.0 to 1.0)
	Model          string        // Model to use (optional, defaults to client's model)
	JSONResponse   bool          // Ask the model for an application/json response
	ResponseSchema *genai.Schema // Optional: Schema for structured output
}

// NewClient creates a new Gemini-backed LLM client.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required. Set GEMINI_API_KEY environment variable or ai.gemini.api_key in config file")
	}

	gClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	c := newClient(opts)
	c.gClient = gClient
	return c, nil
}

func newClient(opts Options) *Client {
	c := &Client{
		apiKey:      opts.APIKey,
		modelName:   opts.Model,
		timeout:     opts.Timeout,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}
	if c.modelName == "" {
		c.modelName = DefaultModel
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if opts.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RequestsPerMinute)), 1)
	}
	return c
}

// GenerateText generates text using the LLM with specified options
func (c *Client) GenerateText(ctx context.Context, prompt string, options TextGenerationOptions) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
	}

	modelName := c.modelName
	if options.Model != "" {
		modelName = options.Model
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	resp, err := c.gClient.Models.GenerateContent(ctx, modelName, contents, c.buildConfig(options))
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from LLM")
	}

	return text, nil
}

// buildConfig merges per-call options over the client defaults. It returns nil when nothing is set.
func (c *Client) buildConfig(options TextGenerationOptions) *genai.GenerateContentConfig {
	maxTokens := c.maxTokens
	if options.MaxTokens > 0 {
		maxTokens = options.MaxTokens
	}
	temperature := c.temperature
	if options.Temperature > 0 {
		temperature = options.Temperature
	}

	if maxTokens <= 0 && temperature <= 0 && !options.JSONResponse && options.ResponseSchema == nil {
		return nil
	}

	config := &genai.GenerateContentConfig{}
	if maxTokens > 0 {
		config.MaxOutputTokens = maxTokens
	}
	if temperature > 0 {
		temp := temperature
		config.Temperature = &temp
	}
	if options.JSONResponse || options.ResponseSchema != nil {
		config.ResponseMIMEType = "application/json"
	}
	if options.ResponseSchema != nil {
		config.ResponseSchema = options.ResponseSchema
	}
	return config
}

// Close cleans up resources used by the client
func (c *Client) Close() {
	// genai clients hold no resources that need releasing
}

// GetModelName returns the model name used by this client
func (c *Client) GetModelName() string {
	return c.modelName
}
