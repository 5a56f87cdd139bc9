package prompts

import (
	"strings"

	"github.com/timmy/shotlens/internal/domain"
)

// ============================================================================
// Intent extraction (vision model)
// ============================================================================

// IntentSystemPrompt sets the role for screenshot intent extraction.
const IntentSystemPrompt = `You are an expert at analyzing screenshots and inferring user intent. You answer with a single JSON object and nothing else.`

// bucketGuide describes each bucket. Keep in sync with domain.AllBuckets.
var bucketGuide = map[domain.Bucket]string{
	domain.BucketTravel:   "locations, destinations, maps, places to visit, restaurants, hotels, cafes",
	domain.BucketShopping: "fashion posts, clothing, accessories, beauty products, product photos, e-commerce sites, reviews, pricing, outfit posts, shopping hauls",
	domain.BucketStartup:  "company info, funding, tech news, startup opportunities, business ideas, tech industry content",
	domain.BucketGeneral:  "anything that does not clearly fit the categories above",
}

const intentInstructions = `Analyze this screenshot and determine:
1. What the user is interested in based on the visual content.
2. Which category the screenshot belongs to:
{{BUCKETS}}
Classification rules:
- Clothing, fashion, accessories, beauty items or product displays are "shopping".
- Social media posts featuring products or outfits are "shopping".
- Location names, places, restaurants or travel destinations are "travel".
- Use "general" only if nothing else fits.

3. Extract relevant data:
- All visible text (OCR).
- Named entities (people, places, organizations, products).
- Every specific place or location mentioned, WITH approximate latitude and longitude.
- Products or items visible.
- Any other relevant metadata.

For each place give the name AND approximate coordinates. Estimate coordinates for well-known
places, cities or landmarks from your own knowledge.

Respond EXACTLY in this format:

{
  "primary_bucket": "travel",
  "bucket_candidates": [
    {"bucket": "travel", "confidence": 0.8},
    {"bucket": "general", "confidence": 0.2}
  ],
  "confidence": 0.8,
  "rationale": "brief explanation",
  "extracted_data": {
    "ocrText": "visible text",
    "entities": ["entity1", "entity2"],
    "places": [
      {"name": "Eiffel Tower", "latitude": 48.8584, "longitude": 2.2945}
    ],
    "products": ["product1"],
    "metadata": {}
  }
}

bucket_candidates MUST be an array of objects. places MUST be an array of objects with name,
latitude and longitude. Return ONLY the JSON, no markdown, no explanation.`

// IntentUserPrompt returns the instruction text sent alongside the image.
func IntentUserPrompt() string {
	var b strings.Builder
	for _, bucket := range domain.AllBuckets {
		b.WriteString("   - ")
		b.WriteString(string(bucket))
		b.WriteString(": ")
		b.WriteString(bucketGuide[bucket])
		b.WriteString("\n")
	}
	return strings.Replace(intentInstructions, "{{BUCKETS}}", b.String(), 1)
}
