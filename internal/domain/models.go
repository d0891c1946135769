package domain

import (
	"strings"
	"time"
)

// Question is one two-choice question of the catalog. The catalog is
// immutable while a quiz is running; positions form a total order.
type Question struct {
	ID              int64  `json:"id"`
	Content         string `json:"content"`
	CorrectAnswer   bool   `json:"-"`
	DurationSeconds int    `json:"durationSeconds"`
	Position        int    `json:"position"`
}

// Participant is an anonymous quiz participant identified by an opaque UUID.
type Participant struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// hexLabels maps hex digits to kana syllables for display names.
var hexLabels = map[byte]string{
	'0': "い", '1': "し", '2': "か", '3': "た",
	'4': "う", '5': "ん", '6': "て", '7': "と",
	'8': "の", '9': "つ", 'a': "は", 'b': "こ",
	'c': "に", 'd': "な", 'e': "く", 'f': "き",
}

// Name derives a display name from the first six hex characters of the
// participant UUID.
func (p Participant) Name() string {
	id := strings.ToLower(p.ID)
	var b strings.Builder
	count := 0
	for i := 0; i < len(id) && count < 6; i++ {
		label, ok := hexLabels[id[i]]
		if !ok {
			continue
		}
		b.WriteString(label)
		count++
	}
	return b.String()
}

// PendingAnswer is a buffered, not-yet-durable submission. It lives in the
// write-behind buffer keyed by (question, participant) until a drain moves
// it into the ledger.
type PendingAnswer struct {
	ParticipantID string    `json:"participantId"`
	QuestionID    int64     `json:"questionId"`
	Answer        bool      `json:"answer"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// AnswerRecord is the durable form of an answer, unique per
// (participant, question). A later drain overwrites an earlier record.
type AnswerRecord struct {
	ParticipantID string    `json:"participantId"`
	QuestionID    int64     `json:"questionId"`
	Answer        bool      `json:"answer"`
	AnsweredAt    time.Time `json:"answeredAt"`
}

// Tally is the per-participant aggregate the ranking is computed from.
type Tally struct {
	ParticipantID   string `json:"participantId"`
	ParticipantName string `json:"participantName"`
	CorrectCount    int    `json:"correctCount"`
	TotalAnswered   int    `json:"totalAnswered"`
}

// RankingEntry is one row of the standings. LotteryScore is 0 unless a
// tie-break lottery assigned this participant a position within its group.
type RankingEntry struct {
	ParticipantID   string `json:"participantId"`
	ParticipantName string `json:"participantName"`
	CorrectCount    int    `json:"correctCount"`
	TotalAnswered   int    `json:"totalAnswered"`
	Rank            int    `json:"rank"`
	LotteryScore    int    `json:"lotteryScore"`
}

// StateSnapshot is the observable view of the session state machine.
type StateSnapshot struct {
	QuizActive        bool       `json:"quizActive"`
	ActiveQuestionID  *int64     `json:"activeQuestionId"`
	QuestionStartedAt *time.Time `json:"questionStartedAt"`
	QuestionEndsAt    *time.Time `json:"questionEndsAt"`
	DurationSeconds   *int       `json:"durationSeconds"`
	QuestionActive    bool       `json:"questionActive"`
	RemainingSeconds  int        `json:"remainingSeconds"`
}

// ResetResult reports what a full quiz reset removed.
type ResetResult struct {
	DeletedAnswers      int `json:"deletedAnswersCount"`
	DeletedParticipants int `json:"deletedPlayersCount"`
}
