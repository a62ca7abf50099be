package models

import (
	"errors"
	"fmt"
)

// ErrInvalidRecord wraps all boundary-validation failures.
var ErrInvalidRecord = errors.New("invalid record")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidRecord}, args...)...)
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// Validate checks a record at the data-service boundary instead of trusting
// the store. Unknown record types pass through: the boundary only guards the
// entities it knows about.
func Validate(record any) error {
	switch r := record.(type) {
	case *Profile:
		return validateProfile(r)
	case Profile:
		return validateProfile(&r)
	case *Swipe:
		return validateSwipe(r)
	case Swipe:
		return validateSwipe(&r)
	case *Match:
		return validateMatch(r)
	case Match:
		return validateMatch(&r)
	case *Message:
		return validateMessage(r)
	case Message:
		return validateMessage(&r)
	case *LiveQueueEntry:
		return validateQueueEntry(r)
	case LiveQueueEntry:
		return validateQueueEntry(&r)
	case *LiveSession:
		return validateLiveSession(r)
	case LiveSession:
		return validateLiveSession(&r)
	case *InterestExpression:
		return validateExpression(r)
	case InterestExpression:
		return validateExpression(&r)
	case *UserPreferences:
		return validatePreferences(r)
	case UserPreferences:
		return validatePreferences(&r)
	}
	return nil
}

func validateProfile(p *Profile) error {
	if p.ID == "" {
		return invalidf("profile id is required")
	}
	if p.Gender != "" && !oneOf(p.Gender, GenderMale, GenderFemale, GenderOther, GenderPreferNotToSay) {
		return invalidf("unknown gender %q", p.Gender)
	}
	if p.VerificationStatus != "" && !oneOf(p.VerificationStatus,
		VerificationNone, VerificationPending, VerificationVerified, VerificationRejected) {
		return invalidf("unknown verification status %q", p.VerificationStatus)
	}
	if p.RelationshipGoal != "" && !oneOf(p.RelationshipGoal, GoalCasual, GoalSerious, GoalMarriage, GoalFriendship) {
		return invalidf("unknown relationship goal %q", p.RelationshipGoal)
	}
	return nil
}

func validateSwipe(s *Swipe) error {
	if s.SwiperID == "" || s.SwipedID == "" {
		return invalidf("swipe requires swiper and swiped ids")
	}
	if s.SwiperID == s.SwipedID {
		return invalidf("cannot swipe on yourself")
	}
	if !oneOf(s.Action, ActionLike, ActionDislike, ActionSuperlike) {
		return invalidf("unknown swipe action %q", s.Action)
	}
	return nil
}

func validateMatch(m *Match) error {
	if m.ID == "" || m.User1ID == "" || m.User2ID == "" {
		return invalidf("match requires id and both participants")
	}
	if m.User1ID == m.User2ID {
		return invalidf("match participants must differ")
	}
	return nil
}

func validateMessage(m *Message) error {
	if m.ID == "" || m.ConversationID == "" || m.SenderID == "" {
		return invalidf("message requires id, conversation and sender")
	}
	if m.Content == "" {
		return invalidf("message content is empty")
	}
	return nil
}

func validateQueueEntry(e *LiveQueueEntry) error {
	if e.UserID == "" {
		return invalidf("queue entry requires a user id")
	}
	if !oneOf(e.SessionType, SessionTypeText, SessionTypeAudio, SessionTypeVideo) {
		return invalidf("unknown session type %q", e.SessionType)
	}
	return nil
}

func validateLiveSession(s *LiveSession) error {
	if s.ID == "" || s.User1ID == "" || s.User2ID == "" {
		return invalidf("live session requires id and both participants")
	}
	if s.User1ID == s.User2ID {
		return invalidf("live session participants must differ")
	}
	if !oneOf(s.SessionType, SessionTypeText, SessionTypeAudio, SessionTypeVideo) {
		return invalidf("unknown session type %q", s.SessionType)
	}
	return nil
}

func validateExpression(e *InterestExpression) error {
	if e.ID == "" || e.SenderID == "" || e.ReceiverID == "" {
		return invalidf("interest expression requires id, sender and receiver")
	}
	if e.SenderID == e.ReceiverID {
		return invalidf("cannot express interest in yourself")
	}
	if !oneOf(e.Status, ExpressionPending, ExpressionAccepted, ExpressionDeclined) {
		return invalidf("unknown expression status %q", e.Status)
	}
	return nil
}

func validatePreferences(p *UserPreferences) error {
	if p.UserID == "" {
		return invalidf("preferences require a user id")
	}
	if p.MinAge != 0 && p.MaxAge != 0 && p.MinAge > p.MaxAge {
		return invalidf("age range is inverted (%d > %d)", p.MinAge, p.MaxAge)
	}
	return nil
}
