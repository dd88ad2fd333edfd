package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"vpnrotator/internal/domain"
)

const DefaultModel = "gemini-2.5-flash"

var generateContentFunc = generateContent

// GeminiGenerator asks Gemini for a JSON security assessment of a proxy.
type GeminiGenerator struct {
	apiKey string
	model  string
}

func NewGeminiGenerator(apiKey, model string) *GeminiGenerator {
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &GeminiGenerator{apiKey: strings.TrimSpace(apiKey), model: model}
}

func (g *GeminiGenerator) Generate(ctx context.Context, proxy domain.ProxyDescriptor) (domain.SecurityReport, error) {
	if g.apiKey == "" {
		return domain.SecurityReport{}, ErrMissingCredential
	}

	text, err := generateContentFunc(ctx, g.apiKey, g.model, buildPrompt(proxy))
	if err != nil {
		return domain.SecurityReport{}, fmt.Errorf("gemini: generate content: %w", err)
	}

	return decodeReport(text)
}

func buildPrompt(proxy domain.ProxyDescriptor) string {
	var b strings.Builder
	b.WriteString("Act as a cybersecurity expert. Analyze a VPN/Proxy server with these details:\n")
	fmt.Fprintf(&b, "Location: %s\n", proxy.Location())
	fmt.Fprintf(&b, "Protocol: %s\n", proxy.Protocol)
	fmt.Fprintf(&b, "Encryption: %s\n", proxy.Encryption)
	fmt.Fprintf(&b, "Latency: %dms\n\n", proxy.Latency)
	b.WriteString("Provide a JSON response with:\n")
	b.WriteString("1. riskLevel: 'Low', 'Medium', or 'High' based on general internet freedom in that country and the protocol used (HTTP is high risk, SOCKS5/HTTPS is lower).\n")
	fmt.Fprintf(&b, "2. summary: A 1-sentence summary of privacy laws in %s.\n", proxy.Country)
	fmt.Fprintf(&b, "3. encryptionAnalysis: A short comment on the strength of %s or lack thereof.\n", proxy.Encryption)
	return b.String()
}

func responseSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"riskLevel":          {Type: genai.TypeString, Enum: []string{"Low", "Medium", "High"}},
			"summary":            {Type: genai.TypeString},
			"encryptionAnalysis": {Type: genai.TypeString},
		},
		Required: []string{"riskLevel", "summary", "encryptionAnalysis"},
	}
}

func generateContent(ctx context.Context, apiKey, model, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return "", err
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
	})
	if err != nil {
		return "", err
	}

	return resp.Text(), nil
}

type wireReport struct {
	RiskLevel          string `json:"riskLevel"`
	Summary            string `json:"summary"`
	EncryptionAnalysis string `json:"encryptionAnalysis"`
}

func decodeReport(text string) (domain.SecurityReport, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.SecurityReport{}, fmt.Errorf("%w: empty response", ErrMalformedReport)
	}

	var wire wireReport
	if err := json.Unmarshal([]byte(text), &wire); err != nil {
		return domain.SecurityReport{}, fmt.Errorf("%w: %v", ErrMalformedReport, err)
	}

	risk, err := domain.ParseRiskLevel(wire.RiskLevel)
	if err != nil {
		return domain.SecurityReport{}, fmt.Errorf("%w: risk level %q", ErrMalformedReport, wire.RiskLevel)
	}

	summary := strings.TrimSpace(wire.Summary)
	if summary == "" {
		return domain.SecurityReport{}, fmt.Errorf("%w: missing summary", ErrMalformedReport)
	}

	analysis := strings.TrimSpace(wire.EncryptionAnalysis)
	if analysis == "" {
		return domain.SecurityReport{}, fmt.Errorf("%w: missing encryption analysis", ErrMalformedReport)
	}

	return domain.SecurityReport{
		RiskLevel:          risk,
		Summary:            summary,
		EncryptionAnalysis: analysis,
	}, nil
}
