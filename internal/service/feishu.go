package service

import (
	"fmt"
	"strings"
	"time"

	"catalyst/internal/model"
)

// Feishu interactive card payload, as accepted by the group webhook API.
type feishuCard struct {
	MsgType string     `json:"msg_type"`
	Card    cardDetail `json:"card"`
}

type cardDetail struct {
	Config   cardConfig    `json:"config"`
	Header   cardHeader    `json:"header"`
	Elements []cardElement `json:"elements"`
}

type cardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

type cardHeader struct {
	Title    cardText `json:"title"`
	Template string   `json:"template"`
}

type cardElement struct {
	Tag     string       `json:"tag"`
	Text    *cardText    `json:"text,omitempty"`
	Actions []cardButton `json:"actions,omitempty"`
}

type cardText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type cardButton struct {
	Tag  string   `json:"tag"`
	Text cardText `json:"text"`
	Type string   `json:"type,omitempty"`
	URL  string   `json:"url"`
}

func newCard(title, color string, lines []string) feishuCard {
	return feishuCard{
		MsgType: "interactive",
		Card: cardDetail{
			Config: cardConfig{WideScreenMode: true},
			Header: cardHeader{
				Title:    cardText{Tag: "plain_text", Content: title},
				Template: color,
			},
			Elements: []cardElement{
				{Tag: "div", Text: &cardText{Tag: "lark_md", Content: strings.Join(lines, "\n")}},
			},
		},
	}
}

func topupSubmittedCard(t *model.TopupRequest, approveURL, rejectURL string) feishuCard {
	lines := []string{
		fmt.Sprintf("**User:** %s", t.Email),
		fmt.Sprintf("**Pack:** %s (%d credits)", t.TierName, t.Credits),
		fmt.Sprintf("**Price:** ¥%.2f", t.Price),
		fmt.Sprintf("**Request:** #%d", t.ID),
		fmt.Sprintf("**Submitted:** %s", t.CreatedAt.Format(time.RFC3339)),
	}
	if t.ReceiptFileKey != nil {
		lines = append(lines, fmt.Sprintf("**Receipt:** %s", *t.ReceiptFileKey))
	}
	card := newCard("New top-up request pending review", "orange", lines)
	if approveURL != "" && rejectURL != "" {
		card.Card.Elements = append(card.Card.Elements,
			cardElement{Tag: "hr"},
			cardElement{Tag: "action", Actions: []cardButton{
				{Tag: "button", Text: cardText{Tag: "plain_text", Content: "Approve"}, Type: "primary", URL: approveURL},
				{Tag: "button", Text: cardText{Tag: "plain_text", Content: "Reject"}, Type: "danger", URL: rejectURL},
			}},
		)
	}
	return card
}

func topupReviewedCard(t *model.TopupRequest, approved bool, newBalance int) feishuCard {
	if approved {
		return newCard("Top-up approved", "green", []string{
			fmt.Sprintf("**User:** %s", t.Email),
			fmt.Sprintf("**Pack:** %s (%d credits)", t.TierName, t.Credits),
			fmt.Sprintf("**New balance:** %d credits", newBalance),
			fmt.Sprintf("**Request:** #%d", t.ID),
		})
	}
	lines := []string{
		fmt.Sprintf("**User:** %s", t.Email),
		fmt.Sprintf("**Pack:** %s (%d credits)", t.TierName, t.Credits),
		fmt.Sprintf("**Request:** #%d", t.ID),
	}
	if t.AdminRemark != nil && *t.AdminRemark != "" {
		lines = append(lines, fmt.Sprintf("**Reason:** %s", *t.AdminRemark))
	}
	return newCard("Top-up rejected", "red", lines)
}

func analysisCompletedCard(job *model.AnalysisJob) feishuCard {
	return newCard("Analysis completed", "green", []string{
		fmt.Sprintf("**File:** %s", job.FileName),
		fmt.Sprintf("**Stocks:** %d", job.StockCount),
		fmt.Sprintf("**Searches:** %d", job.SearchCount),
		fmt.Sprintf("**Duration:** %ds", job.DurationSecs),
		fmt.Sprintf("**Job:** %s", job.ID),
	})
}

func analysisFailedCard(job *model.AnalysisJob, reason string) feishuCard {
	return newCard("Analysis failed", "red", []string{
		fmt.Sprintf("**File:** %s", job.FileName),
		fmt.Sprintf("**Stocks:** %d/%d analyzed", job.StocksDone, job.StockCount),
		fmt.Sprintf("**Error:** %s", reason),
		fmt.Sprintf("**Job:** %s", job.ID),
	})
}

func purchaseCompletedCard(email string, credits, newBalance int, orderNo string) feishuCard {
	return newCard("Credit purchase completed", "green", []string{
		fmt.Sprintf("**User:** %s", email),
		fmt.Sprintf("**Credits:** %d", credits),
		fmt.Sprintf("**New balance:** %d", newBalance),
		fmt.Sprintf("**Order:** %s", orderNo),
	})
}
