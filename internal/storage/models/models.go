package models

import "time"

// Review outcome values stored in learning_history.result.
const (
	ResultCorrect   = "correct"
	ResultIncorrect = "incorrect"
)

// Quiz question types.
const (
	QuestionMultipleChoice = "multiple_choice"
	QuestionOpenEnded      = "open_ended"
	QuestionTrueFalse      = "true_false"
)

// OptionsDelimiter separates serialized quiz options. Option text containing
// the delimiter is not escaped; this is a known limitation carried over from
// the storage format.
const OptionsDelimiter = "|||"

type User struct {
	ID           int64      `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	Salt         string     `json:"-"`
	Name         string     `json:"name"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

type Document struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Filename    string    `json:"filename"`
	Content     string    `json:"content"`
	DocType     string    `json:"doc_type"`
	Checksum    string    `json:"checksum"`
	UploadDate  time.Time `json:"upload_date"`
	IsProcessed bool      `json:"is_processed"`
}

type Summary struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	DocumentID  int64     `json:"document_id"`
	Filename    string    `json:"filename"`
	SummaryText string    `json:"summary_text"`
	CreatedAt   time.Time `json:"created_at"`
}

type Flashcard struct {
	ID            int64      `json:"id"`
	UserID        int64      `json:"user_id"`
	DocumentID    *int64     `json:"document_id,omitempty"`
	Question      string     `json:"question"`
	Answer        string     `json:"answer"`
	Difficulty    string     `json:"difficulty"`
	TimesReviewed int        `json:"times_reviewed"`
	TimesCorrect  int        `json:"times_correct"`
	LastReviewed  *time.Time `json:"last_reviewed,omitempty"`
	NextReview    *time.Time `json:"next_review,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// SuccessRate is the cumulative correct/total ratio for this card, 0 for a
// card that has never been reviewed.
func (f *Flashcard) SuccessRate() float64 {
	if f.TimesReviewed == 0 {
		return 0
	}
	return float64(f.TimesCorrect) / float64(f.TimesReviewed)
}

type QuizQuestion struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	DocumentID    *int64    `json:"document_id,omitempty"`
	QuestionType  string    `json:"question_type"`
	QuestionText  string    `json:"question_text"`
	Options       []string  `json:"options,omitempty"`
	CorrectAnswer string    `json:"correct_answer"`
	Explanation   string    `json:"explanation,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// HistoryEvent is one append-only review outcome. Exactly one of FlashcardID
// and QuizQuestionID is set.
type HistoryEvent struct {
	ID             int64     `json:"id"`
	UserID         int64     `json:"user_id"`
	FlashcardID    *int64    `json:"flashcard_id,omitempty"`
	QuizQuestionID *int64    `json:"quiz_question_id,omitempty"`
	Result         string    `json:"result"`
	ReviewDate     time.Time `json:"review_date"`
}

type Conversation struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	ModelName string    `json:"model_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	UserID         int64     `json:"user_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// LearningStats is the point-in-time counter set derived from the history log
// plus entity counts.
type LearningStats struct {
	TotalDocuments     int     `json:"total_documents"`
	TotalFlashcards    int     `json:"total_flashcards"`
	TotalQuestions     int     `json:"total_questions"`
	CardsReviewedToday int     `json:"cards_reviewed_today"`
	SuccessRate        float64 `json:"success_rate"`
}

// NewFlashcard is the shape accepted by bulk flashcard creation.
type NewFlashcard struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	Difficulty string `json:"difficulty"`
}

// NewQuizQuestion is the shape accepted by bulk quiz creation.
type NewQuizQuestion struct {
	QuestionType  string   `json:"question_type"`
	QuestionText  string   `json:"question_text"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}

// Memory item categories recognized by the extraction pipeline.
const (
	MemoryCategoryProfile     = "profile"
	MemoryCategoryPreferences = "preferences"
	MemoryCategoryGoals       = "goals"
	MemoryCategoryContext     = "context"
	MemoryCategoryConstraints = "constraints"
	MemoryCategoryGeneral     = "general"
)

// MemoryItem is one remembered fact about a user, keyed by (category, key).
// Deactivated items stay in storage until a hard delete.
type MemoryItem struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Category        string    `json:"category"`
	Key             string    `json:"key"`
	Value           string    `json:"value"`
	Confidence      float64   `json:"confidence"`
	Importance      float64   `json:"importance"`
	SourceMessageID *int64    `json:"source_message_id,omitempty"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// NewMemoryItem is the shape accepted by memory upserts.
type NewMemoryItem struct {
	Category        string  `json:"category"`
	Key             string  `json:"key"`
	Value           string  `json:"value"`
	Confidence      float64 `json:"confidence"`
	Importance      float64 `json:"importance"`
	SourceMessageID *int64  `json:"source_message_id,omitempty"`
}
