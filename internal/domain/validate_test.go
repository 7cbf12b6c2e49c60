package domain

import "testing"

func validQuestion() Question {
	return Question{
		ID:     "q1",
		TestID: "univ_",
		Text:   "What is 2 + 2?",
		Options: []Option{
			{ID: "A", Text: "3"},
			{ID: "B", Text: "4"},
			{ID: "C", Text: "5"},
			{ID: "D", Text: "22"},
		},
		CorrectOptionID: "B",
	}
}

func TestValidateQuestionAccepts(t *testing.T) {
	if err := ValidateQuestion(validQuestion()); err != nil {
		t.Fatalf("valid question rejected: %v", err)
	}
}

func TestValidateQuestionRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Question)
	}{
		{"missing id", func(q *Question) { q.ID = "" }},
		{"missing test id", func(q *Question) { q.TestID = "" }},
		{"missing text", func(q *Question) { q.Text = "" }},
		{"three options", func(q *Question) { q.Options = q.Options[:3] }},
		{"five options", func(q *Question) { q.Options = append(q.Options, Option{ID: "E", Text: "x"}) }},
		{"empty option id", func(q *Question) { q.Options[0].ID = "" }},
		{"duplicate option ids", func(q *Question) { q.Options[1].ID = "A" }},
		{"correct option not present", func(q *Question) { q.CorrectOptionID = "Z" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := validQuestion()
			tc.mutate(&q)
			if err := ValidateQuestion(q); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestTestIDForUser(t *testing.T) {
	cases := []struct{ username, want string }{
		{"univA_42", "univA_"},
		{"univ_u1", "univ_"},
		{"univ_u1_extra", "univ_"},
		{"nounderscore", "nounderscore_"},
	}
	for _, tc := range cases {
		if got := TestIDForUser(tc.username); got != tc.want {
			t.Fatalf("TestIDForUser(%q) = %q, want %q", tc.username, got, tc.want)
		}
	}
}

func TestQuestionAwardDefaultsToOne(t *testing.T) {
	q := validQuestion()
	if q.Award() != 1 {
		t.Fatalf("zero points award %d, want 1", q.Award())
	}
	q.Points = 3
	if q.Award() != 3 {
		t.Fatalf("award %d, want 3", q.Award())
	}
}
