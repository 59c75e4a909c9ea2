package service

import (
	"encoding/json"
	"testing"

	"catalyst/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopupSubmittedCard(t *testing.T) {
	key := "receipts/1/abc.png"
	card := topupSubmittedCard(&model.TopupRequest{
		ID:             7,
		Email:          "user@example.com",
		TierName:       "Value Pack",
		Credits:        50,
		Price:          39.9,
		ReceiptFileKey: &key,
	}, "https://app.example/v1/topups/review?token=tok-approve", "https://app.example/v1/topups/review?token=tok-reject")

	assert.Equal(t, "interactive", card.MsgType)
	assert.Equal(t, "orange", card.Card.Header.Template)

	// last element carries the review buttons
	actions := card.Card.Elements[len(card.Card.Elements)-1]
	assert.Equal(t, "action", actions.Tag)
	require.Len(t, actions.Actions, 2)
	assert.Equal(t, "primary", actions.Actions[0].Type)
	assert.Contains(t, actions.Actions[0].URL, "tok-approve")
	assert.Equal(t, "danger", actions.Actions[1].Type)
	assert.Contains(t, actions.Actions[1].URL, "tok-reject")

	payload, err := json.Marshal(card)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "user@example.com")
	assert.Contains(t, string(payload), "Value Pack")
	assert.Contains(t, string(payload), key)
}

func TestTopupSubmittedCardWithoutLinks(t *testing.T) {
	card := topupSubmittedCard(&model.TopupRequest{ID: 7, Email: "user@example.com", TierName: "Value Pack", Credits: 50}, "", "")
	for _, el := range card.Card.Elements {
		assert.NotEqual(t, "action", el.Tag)
	}
}

func TestTopupReviewedCardTemplates(t *testing.T) {
	remark := "receipt unreadable"
	req := &model.TopupRequest{ID: 7, Email: "user@example.com", TierName: "Value Pack", Credits: 50, AdminRemark: &remark}

	approved := topupReviewedCard(req, true, 62)
	assert.Equal(t, "green", approved.Card.Header.Template)

	rejected := topupReviewedCard(req, false, 0)
	assert.Equal(t, "red", rejected.Card.Header.Template)

	payload, err := json.Marshal(rejected)
	require.NoError(t, err)
	assert.Contains(t, string(payload), remark)
}

func TestAnalysisCards(t *testing.T) {
	job := &model.AnalysisJob{ID: "job-1", FileName: "stocks.xlsx", StockCount: 10, StocksDone: 4}

	done := analysisCompletedCard(job)
	assert.Equal(t, "green", done.Card.Header.Template)

	failed := analysisFailedCard(job, "search provider down")
	assert.Equal(t, "red", failed.Card.Header.Template)
	payload, err := json.Marshal(failed)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "4/10")
	assert.Contains(t, string(payload), "search provider down")
}
