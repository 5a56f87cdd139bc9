package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/shotlens/internal/domain"
)

const validReply = `{
  "primary_bucket": "travel",
  "bucket_candidates": [
    {"bucket": "travel", "confidence": 0.8},
    {"bucket": "general", "confidence": 0.2}
  ],
  "confidence": 0.8,
  "rationale": "map of Paris",
  "extracted_data": {
    "ocrText": "Eiffel Tower",
    "entities": ["Eiffel Tower"],
    "places": [
      {"name": "Eiffel Tower", "latitude": 48.8584, "longitude": 2.2945},
      {"name": "Somewhere"}
    ],
    "products": [],
    "metadata": {"source": "maps"}
  }
}`

func TestParseIntentExtraction_Valid(t *testing.T) {
	got, err := ParseIntentExtraction(validReply)
	require.NoError(t, err)

	assert.Equal(t, domain.BucketTravel, got.Intent.PrimaryBucket)
	assert.Len(t, got.Intent.BucketCandidates, 2)
	assert.Equal(t, 0.8, got.Intent.Confidence)
	assert.Equal(t, "map of Paris", got.Intent.Rationale)
	assert.Equal(t, "Eiffel Tower", got.Extracted.OCRText)
	require.Len(t, got.Extracted.Places, 2)
	assert.True(t, got.Extracted.Places[0].HasCoordinates())
	assert.False(t, got.Extracted.Places[1].HasCoordinates())
	assert.Equal(t, "maps", got.Extracted.Metadata["source"])
}

func TestParseIntentExtraction_StripsFences(t *testing.T) {
	for _, wrapped := range []string{
		"```json\n" + validReply + "\n```",
		"```\n" + validReply + "\n```",
		"  \n" + validReply + "\n\n",
	} {
		got, err := ParseIntentExtraction(wrapped)
		require.NoError(t, err)
		assert.Equal(t, domain.BucketTravel, got.Intent.PrimaryBucket)
	}
}

func TestParseIntentExtraction_ExtractedDataOptional(t *testing.T) {
	got, err := ParseIntentExtraction(`{"primary_bucket":"general","bucket_candidates":[],"confidence":0.4,"rationale":""}`)
	require.NoError(t, err)
	assert.Equal(t, domain.BucketGeneral, got.Intent.PrimaryBucket)
	assert.NotNil(t, got.Extracted.Places)
	assert.NotNil(t, got.Extracted.Entities)
	assert.Empty(t, got.Extracted.Places)
}

func TestParseIntentExtraction_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "empty", reply: "   "},
		{name: "not json", reply: "I think this is a travel screenshot."},
		{name: "unknown bucket", reply: `{"primary_bucket":"food","bucket_candidates":[],"confidence":0.5,"rationale":"x"}`},
		{name: "missing primary", reply: `{"bucket_candidates":[],"confidence":0.5,"rationale":"x"}`},
		{name: "candidates as object", reply: `{"primary_bucket":"travel","bucket_candidates":{"bucket":"travel","confidence":0.9},"confidence":0.9,"rationale":"x"}`},
		{name: "missing candidates", reply: `{"primary_bucket":"travel","confidence":0.9,"rationale":"x"}`},
		{name: "candidate bucket invalid", reply: `{"primary_bucket":"travel","bucket_candidates":[{"bucket":"x","confidence":0.9}],"confidence":0.9,"rationale":"x"}`},
		{name: "candidate confidence above one", reply: `{"primary_bucket":"travel","bucket_candidates":[{"bucket":"travel","confidence":1.2}],"confidence":0.9,"rationale":"x"}`},
		{name: "confidence negative", reply: `{"primary_bucket":"travel","bucket_candidates":[],"confidence":-0.1,"rationale":"x"}`},
		{name: "confidence as string", reply: `{"primary_bucket":"travel","bucket_candidates":[],"confidence":"high","rationale":"x"}`},
		{name: "missing rationale", reply: `{"primary_bucket":"travel","bucket_candidates":[],"confidence":0.5}`},
		{name: "place without name", reply: `{"primary_bucket":"travel","bucket_candidates":[],"confidence":0.5,"rationale":"x","extracted_data":{"places":[{"latitude":1,"longitude":2}]}}`},
		{name: "place latitude as string", reply: `{"primary_bucket":"travel","bucket_candidates":[],"confidence":0.5,"rationale":"x","extracted_data":{"places":[{"name":"a","latitude":"48.1"}]}}`},
		{name: "places as object", reply: `{"primary_bucket":"travel","bucket_candidates":[],"confidence":0.5,"rationale":"x","extracted_data":{"places":{"name":"a"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIntentExtraction(tt.reply)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrParseFailure)
			assert.ErrorIs(t, err, domain.ErrExtractionFailure)
		})
	}
}

func TestParseIntentExtraction_DropsUnnamedPlaces(t *testing.T) {
	got, err := ParseIntentExtraction(`{"primary_bucket":"travel","bucket_candidates":[],"confidence":0.6,"rationale":"x",
		"extracted_data":{"places":[{"name":"","latitude":1,"longitude":2},{"name":"  "},{"name":"Lisbon","latitude":38.7,"longitude":-9.1}]}}`)
	require.NoError(t, err)
	require.Len(t, got.Extracted.Places, 1)
	assert.Equal(t, "Lisbon", got.Extracted.Places[0].Name)
}
