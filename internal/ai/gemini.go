package ai

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"ledgerlens-go/internal/config"
)

// Extractor turns extracted document text into a raw model response
// that should contain a structured transaction payload.
type Extractor interface {
	ExtractTransactions(ctx context.Context, text, userName string) (string, error)
}

const systemInstruction = `You are an intelligent data transformation system that converts unstructured invoice text into a structured transaction JSON object.

Business logic:
1. The "user" is the currently logged-in person in the system.
2. The "client" is always the other party mentioned in the invoice.
3. If the user is paying the client, classify the transaction as EXPENSE.
4. If the user is receiving payment from the client, classify it as INCOME.
5. Intelligently determine a concise transaction "category" from the client's
   name and the services or products described (e.g. "Cloud Hosting",
   "Software Subscription", "Marketing Services", "Office Supplies").

Output rules:
- Produce a single, valid JSON object (or a JSON array of such objects when
  the document contains several transactions) matching this exact structure,
  with camelCase field names:

{
  "client": "string",
  "txnDate": "YYYY-MM-DD",
  "amountBeforeTax": "decimal",
  "amountAfterTax": "decimal",
  "currency": "string",
  "category": "string",
  "transactionType": "INCOME or EXPENSE",
  "invoiceNumber": "string (optional)",
  "paymentMethod": "string (optional)"
}

Validation and data handling rules:
- txnDate must be in ISO format (YYYY-MM-DD).
- amountBeforeTax and amountAfterTax must be numeric. If only one amount is
  present, use it for both fields.
- transactionType must be either INCOME or EXPENSE.
- Ignore unrelated text like disclaimers, signatures, and generic greetings.
- Your final output must be only the raw JSON, with no explanations,
  comments, or markdown formatting.`

// GeminiExtractor calls Gemini to convert document text into a
// transaction payload.
type GeminiExtractor struct {
	client *genai.Client
	model  string
}

func NewGeminiExtractor(ctx context.Context, cfg config.GeminiConfig) (*GeminiExtractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiExtractor{client: client, model: cfg.Model}, nil
}

func (g *GeminiExtractor) ExtractTransactions(ctx context.Context, text, userName string) (string, error) {
	fullPrompt := systemInstruction + "\n\nUser: " + userName + "\n\nExtracted Invoice Text:\n" + text

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: fullPrompt}},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return "", fmt.Errorf("empty response from model")
	}

	return rawText, nil
}
