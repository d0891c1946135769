package domain

import "errors"

var (
	// ErrQuizNotRunning is returned when a question is started while the quiz is inactive.
	ErrQuizNotRunning = errors.New("quiz is not active")
	// ErrQuestionAlreadyOpen is returned when a question window is already open.
	ErrQuestionAlreadyOpen = errors.New("another question is already active")
	// ErrNoQuestions indicates the catalog is empty.
	ErrNoQuestions = errors.New("no questions available")
	// ErrNoMoreQuestions indicates the catalog has been exhausted.
	ErrNoMoreQuestions = errors.New("no more questions available")
	// ErrNoActiveQuestion is returned when an answer arrives outside any question window.
	ErrNoActiveQuestion = errors.New("no active question")
	// ErrParticipantRequired is returned when a submission carries no participant identity.
	ErrParticipantRequired = errors.New("participant not found")
	// ErrUnauthorized is returned when an administrative operation lacks admin credentials.
	ErrUnauthorized = errors.New("admin authentication required")
	// ErrQuestionNotFound indicates an unknown question ID.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrBufferUnavailable wraps buffer store failures on the submission path.
	ErrBufferUnavailable = errors.New("answer buffer unavailable")
)
