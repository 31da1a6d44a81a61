package extract

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/imagery"
	"github.com/HansenHomeAI/RegridParcelBoundaries/internal/model"
	"github.com/HansenHomeAI/RegridParcelBoundaries/pkg/anthropic"
)

// Prompt asks the model for the four search keys as a flat JSON object.
const Prompt = `You are analyzing a parcel boundary map or property document. Extract the following information:

1. APN (Assessor's Parcel Number) - look for labels like "APN:", "Parcel #:", "Tax Lot" or similar numeric identifiers
2. Street Address - complete street address including house number, street name, and any unit/suite numbers
3. County - name of the county where the property is located
4. State - state abbreviation or full name

Respond with JSON only, using this structure:
{
    "apn": "extracted APN or null if not found",
    "address": "complete street address or null if not found",
    "county": "county name or null if not found",
    "state": "state name/abbreviation or null if not found",
    "confidence": "high/medium/low based on clarity of information"
}

If you cannot find a value, return null for that field. Only extract information you can clearly identify.`

// Extractor reads parcel identifiers off an image.
type Extractor interface {
	Extract(ctx context.Context, img imagery.Image) (model.IdentifierRecord, error)
}

// VisionConfig holds the inference settings for VisionExtractor.
type VisionConfig struct {
	Model       string
	MaxTokens   int64
	Temperature float64
}

// VisionExtractor sends each image to the Anthropic Messages API.
type VisionExtractor struct {
	client anthropic.Client
	cfg    VisionConfig
}

// NewVisionExtractor creates a VisionExtractor.
func NewVisionExtractor(client anthropic.Client, cfg VisionConfig) *VisionExtractor {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1000
	}
	return &VisionExtractor{client: client, cfg: cfg}
}

// Extract returns the identifiers the model read from img. A reply that is
// not JSON still yields a record carrying the raw text; only a failed API
// call returns an error.
func (e *VisionExtractor) Extract(ctx context.Context, img imagery.Image) (model.IdentifierRecord, error) {
	log := zap.L().With(zap.String("image", img.Name), zap.Int("page", img.Page))
	start := time.Now()

	temp := e.cfg.Temperature
	resp, err := e.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     e.cfg.Model,
		MaxTokens: e.cfg.MaxTokens,
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: Prompt,
			Images: []anthropic.ImageBlock{{
				MediaType: img.MediaType(),
				Data:      img.Base64(),
			}},
		}},
		Temperature: &temp,
	})
	if err != nil {
		return model.IdentifierRecord{}, eris.Wrapf(err, "extract: vision request for %s", img.Name)
	}

	resp.Usage.LogCost(e.cfg.Model, "extract")

	rec := Parse(resp.Text())
	log.Info("extract: identifiers read",
		zap.Bool("has_apn", rec.AssessorNumber != ""),
		zap.Bool("has_address", rec.Address != ""),
		zap.String("confidence", rec.Confidence),
		zap.Duration("elapsed", time.Since(start)),
	)
	if !rec.HasSearchKey() {
		log.Warn("extract: reply carried no search key", zap.Int("reply_len", len(rec.RawText)))
	}

	return rec, nil
}
