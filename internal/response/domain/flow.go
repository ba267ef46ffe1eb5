package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FlowPayload is the structured reply a WhatsApp flow submits.
type FlowPayload struct {
	Rating   RatingValue `json:"rating"`
	Feedback *string     `json:"feedback"`
}

// RatingValue keeps the rating as the vendor sent it. Flows submit it as a
// string, some clients send a bare number.
type RatingValue string

func (v *RatingValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = RatingValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		// anything else is treated as an unreadable rating, not a bad envelope
		*v = RatingValue(data)
		return nil
	}
	*v = RatingValue(n.String())
	return nil
}

// FlowRating is a parsed flow reply. Score is nil when the payload cannot be
// processed as a survey answer.
type FlowRating struct {
	Score    *int
	Feedback *string
}

const maxFeedbackRunes = 4096

type validatedRating struct {
	Score    int    `validate:"min=0,max=10"`
	Feedback string `validate:"max=4096"`
}

var ratingValidator = validator.New()

// ParseFlowRating extracts the 0-10 rating and optional feedback. An absent,
// non-numeric or out of range rating yields a nil score.
func ParseFlowRating(payload FlowPayload) FlowRating {
	feedback := normalizeFeedback(payload.Feedback)

	raw := strings.TrimSpace(string(payload.Rating))
	if raw == "" {
		return FlowRating{Feedback: feedback}
	}
	score, err := strconv.Atoi(raw)
	if err != nil {
		return FlowRating{Feedback: feedback}
	}

	candidate := validatedRating{Score: score}
	if feedback != nil {
		candidate.Feedback = *feedback
	}
	if err := ratingValidator.Struct(candidate); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && onlyFeedbackFailed(verrs) {
			truncated := truncate(*feedback, maxFeedbackRunes)
			return FlowRating{Score: &score, Feedback: &truncated}
		}
		return FlowRating{Feedback: feedback}
	}
	return FlowRating{Score: &score, Feedback: feedback}
}

func normalizeFeedback(feedback *string) *string {
	if feedback == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*feedback)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func onlyFeedbackFailed(verrs validator.ValidationErrors) bool {
	for _, fe := range verrs {
		if fe.Field() != "Feedback" {
			return false
		}
	}
	return len(verrs) > 0
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
