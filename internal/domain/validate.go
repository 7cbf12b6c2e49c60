package domain

import "errors"

// OptionCount is fixed for every published question.
const OptionCount = 4

// ValidateQuestion checks the invariants a question must satisfy before it
// may be published for a test.
func ValidateQuestion(q Question) error {
	if q.ID == "" {
		return errors.New("question_id is missing or empty")
	}
	if q.TestID == "" {
		return errors.New("test_id is missing or empty")
	}
	if q.Text == "" {
		return errors.New("question text is missing or empty")
	}
	if len(q.Options) != OptionCount {
		return errors.New("options should have exactly 4 elements")
	}
	seen := make(map[string]struct{}, OptionCount)
	for _, opt := range q.Options {
		if opt.ID == "" {
			return errors.New("option id is missing or empty")
		}
		if _, dup := seen[opt.ID]; dup {
			return errors.New("option ids must be distinct")
		}
		seen[opt.ID] = struct{}{}
	}
	if !q.HasOption(q.CorrectOptionID) {
		return errors.New("correct_option_id does not match any option")
	}
	return nil
}
