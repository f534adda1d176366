package google

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/forms/v1"
	"google.golang.org/api/option"

	"github.com/okian/tally/internal/domain/model"
)

// Forms lists form questions and responses. A locator is a form id.
type Forms struct {
	svc *forms.Service
}

// NewForms creates a Forms client.
func NewForms(ctx context.Context, opts ...option.ClientOption) (*Forms, error) {
	svc, err := forms.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: forms: %w", ErrClient, err)
	}
	return &Forms{svc: svc}, nil
}

// ListQuestions returns the form's question items in display order.
func (f *Forms) ListQuestions(ctx context.Context, locator string) ([]model.Question, error) {
	form, err := f.svc.Forms.Get(locator).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get form %s: %w", locator, err)
	}
	var out []model.Question
	for _, item := range form.Items {
		if item.QuestionItem == nil || item.QuestionItem.Question == nil {
			continue
		}
		out = append(out, model.Question{ID: item.QuestionItem.Question.QuestionId, Title: item.Title})
	}
	return out, nil
}

// ListResponses returns every response, following pagination. Multiple text
// answers to one question are joined with ", ".
func (f *Forms) ListResponses(ctx context.Context, locator string) ([]model.Response, error) {
	var out []model.Response
	call := f.svc.Forms.Responses.List(locator)
	err := call.Pages(ctx, func(page *forms.ListFormResponsesResponse) error {
		for _, r := range page.Responses {
			resp := model.Response{ID: r.ResponseId, Answers: make(map[string]string, len(r.Answers))}
			for qid, a := range r.Answers {
				resp.Answers[qid] = textOf(a)
			}
			out = append(out, resp)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list responses %s: %w", locator, err)
	}
	return out, nil
}

func textOf(a forms.Answer) string {
	if a.TextAnswers == nil {
		return ""
	}
	values := make([]string, 0, len(a.TextAnswers.Answers))
	for _, t := range a.TextAnswers.Answers {
		if t != nil {
			values = append(values, t.Value)
		}
	}
	return strings.Join(values, ", ")
}
