package models

// QuestionStatus is open until a host closes the question.
type QuestionStatus string

const (
	QuestionOpen   QuestionStatus = "open"
	QuestionClosed QuestionStatus = "closed"
)

// Question is a Q&A entry. Unpublished questions are visible only to hosts
// and the author.
type Question struct {
	ID         string         `json:"id"`
	Text       string         `json:"text"`
	AuthorID   string         `json:"author_id"`
	AuthorName string         `json:"author_name"`
	Status     QuestionStatus `json:"status"`
	Published  bool           `json:"published"`
	Upvotes    []string       `json:"upvotes"`
	Answer     string         `json:"answer,omitempty"`
	AnswererID string         `json:"answerer_id,omitempty"`
}

// Clone returns a copy that shares no mutable state with the original, safe
// to serialize outside the room lock.
func (q Question) Clone() Question {
	out := q
	out.Upvotes = append([]string(nil), q.Upvotes...)
	return out
}

// HasUpvote reports whether userID is in the upvote set.
func (q Question) HasUpvote(userID string) bool {
	for _, id := range q.Upvotes {
		if id == userID {
			return true
		}
	}
	return false
}
