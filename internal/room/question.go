package room

import (
	"strings"

	"github.com/google/uuid"

	"github.com/roomloop/server/internal/models"
	"github.com/roomloop/server/internal/protocol"
)

// ToggleQA enables or disables question submission. Host only.
func (r *Room) ToggleQA(actorID string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.requireHostLocked(actorID); err != nil {
		return err
	}
	r.qaEnabled = enabled
	r.broadcastLocked(protocol.EventQAToggled, map[string]bool{"enabled": enabled}, "")
	return nil
}

// AskQuestion submits a question. Until a host publishes it, only hosts and
// the author can see it.
func (r *Room) AskQuestion(authorID, text string) (models.Question, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	author, ok := r.participants[authorID]
	if !ok {
		return models.Question{}, ErrNotInRoom
	}
	if !r.qaEnabled {
		return models.Question{}, ErrQADisabled
	}
	if strings.TrimSpace(text) == "" {
		return models.Question{}, ErrEmptyContent
	}

	q := &models.Question{
		ID:         uuid.NewString(),
		Text:       text,
		AuthorID:   authorID,
		AuthorName: author.DisplayName,
		Status:     models.QuestionOpen,
		Upvotes:    []string{},
	}
	r.questions = append(r.questions, q)

	r.broadcastQuestionLocked(protocol.EventQuestionAsked, q)
	return q.Clone(), nil
}

// UpvoteQuestion toggles the caller's upvote. Invoking it twice restores the
// original state.
func (r *Room) UpvoteQuestion(userID, questionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.participants[userID]; !ok {
		return ErrNotInRoom
	}
	q := r.findQuestionLocked(questionID)
	if q == nil {
		return ErrQuestionNotFound
	}
	if q.HasUpvote(userID) {
		q.Upvotes = removeString(q.Upvotes, userID)
	} else {
		q.Upvotes = append(q.Upvotes, userID)
	}

	r.broadcastQuestionLocked(protocol.EventQuestionUpdated, q)
	return nil
}

// PublishQuestion makes a question visible to the whole room. Host only.
func (r *Room) PublishQuestion(actorID, questionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.requireHostLocked(actorID); err != nil {
		return err
	}
	q := r.findQuestionLocked(questionID)
	if q == nil {
		return ErrQuestionNotFound
	}
	q.Published = true

	r.broadcastLocked(protocol.EventQuestionUpdated, *q, "")
	return nil
}

// AnswerQuestion records a host's answer.
func (r *Room) AnswerQuestion(actorID string, action protocol.AnswerQuestion) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	host, err := r.requireHostLocked(actorID)
	if err != nil {
		return err
	}
	q := r.findQuestionLocked(action.QuestionID)
	if q == nil {
		return ErrQuestionNotFound
	}
	q.Answer = action.Answer
	q.AnswererID = host.UserID

	r.broadcastQuestionLocked(protocol.EventQuestionUpdated, q)
	return nil
}

// CloseQuestion marks a question closed. Host only.
func (r *Room) CloseQuestion(actorID, questionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.requireHostLocked(actorID); err != nil {
		return err
	}
	q := r.findQuestionLocked(questionID)
	if q == nil {
		return ErrQuestionNotFound
	}
	q.Status = models.QuestionClosed

	r.broadcastQuestionLocked(protocol.EventQuestionUpdated, q)
	return nil
}

// DismissQuestion removes a question entirely. Host only.
func (r *Room) DismissQuestion(actorID, questionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.requireHostLocked(actorID); err != nil {
		return err
	}
	for i, q := range r.questions {
		if q.ID == questionID {
			r.questions = append(r.questions[:i], r.questions[i+1:]...)
			r.broadcastLocked(protocol.EventQuestionDismissed, map[string]string{"question_id": questionID}, "")
			return nil
		}
	}
	return ErrQuestionNotFound
}

// PushQuestions sends the question list visible to the participant to their
// own connection, under the room lock so it stays ordered with Q&A
// broadcasts.
func (r *Room) PushQuestions(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[userID]
	if !ok {
		return ErrNotInRoom
	}
	r.sendToLocked(p.ConnectionID, protocol.EventQuestionsFetched, r.visibleQuestionsLocked(userID))
	return nil
}

// Questions returns the list as visible to viewerID.
func (r *Room) Questions(viewerID string) []models.Question {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visibleQuestionsLocked(viewerID)
}

// broadcastQuestionLocked routes a question delta to its eligible audience:
// the whole room once published, otherwise hosts plus the author.
func (r *Room) broadcastQuestionLocked(eventType string, q *models.Question) {
	if q.Published {
		r.broadcastLocked(eventType, *q, "")
		return
	}
	audience := r.hostIDsLocked()
	if !containsString(audience, q.AuthorID) {
		audience = append(audience, q.AuthorID)
	}
	r.broadcastToLocked(eventType, *q, audience)
}

func (r *Room) visibleQuestionsLocked(viewerID string) []models.Question {
	viewer, isParticipant := r.participants[viewerID]
	seeAll := isParticipant && viewer.IsHost()

	out := make([]models.Question, 0, len(r.questions))
	for _, q := range r.questions {
		if q.Published || seeAll || q.AuthorID == viewerID {
			out = append(out, q.Clone())
		}
	}
	return out
}

func (r *Room) findQuestionLocked(id string) *models.Question {
	for _, q := range r.questions {
		if q.ID == id {
			return q
		}
	}
	return nil
}
