package domain

import "errors"

var (
	// ErrInvalidSubmission is returned when a submission is missing required fields.
	ErrInvalidSubmission = errors.New("submission missing required fields")
	// ErrQueueUnavailable is returned when a submission could not be handed to the queue.
	ErrQueueUnavailable = errors.New("submission queue unavailable")
	// ErrQuestionNotFound indicates the referenced question does not exist.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrQuestionExists indicates a bulk insert hit an already-published question id.
	ErrQuestionExists = errors.New("question already exists")
	// ErrNoQuestionsLeft indicates the user has seen every question of their test.
	ErrNoQuestionsLeft = errors.New("no unanswered questions available")
	// ErrQuestionLimit indicates the per-user question limit has been reached.
	ErrQuestionLimit = errors.New("questions limit reached")
)
