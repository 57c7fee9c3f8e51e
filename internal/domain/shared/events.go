// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types.
const (
	// User events
	EventUserRegistered EventType = "user.registered"
	EventUserFollowed   EventType = "user.followed"
	EventUserUnfollowed EventType = "user.unfollowed"

	// Lesson events
	EventLessonStarted   EventType = "lesson.started"
	EventLessonCompleted EventType = "lesson.completed"
	EventLessonFailed    EventType = "lesson.failed"
	EventProgressReset   EventType = "progress.reset"
	EventStreakUpdated   EventType = "progress.streak_updated"

	// League events
	EventLeaguePointsAdded EventType = "league.points_added"
	EventLeaguePromoted    EventType = "league.promoted"

	// Quest events
	EventQuestClaimed EventType = "quest.claimed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// User Events
// ═══════════════════════════════════════════════════════════════════════════

// UserRegisteredEvent is emitted when a new account is created.
type UserRegisteredEvent struct {
	BaseEvent
	Username string `json:"username"`
	League   string `json:"league"`
}

// Payload implements Event interface.
func (e UserRegisteredEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"username": e.Username,
		"league":   e.League,
	}
}

// NewUserRegisteredEvent creates a new UserRegisteredEvent.
func NewUserRegisteredEvent(userID, username, league string) UserRegisteredEvent {
	return UserRegisteredEvent{
		BaseEvent: NewBaseEvent(EventUserRegistered, userID),
		Username:  username,
		League:    league,
	}
}

// UserFollowedEvent is emitted on follow and unfollow.
type UserFollowedEvent struct {
	BaseEvent
	FollowerID string `json:"follower_id"`
	FolloweeID string `json:"followee_id"`
}

// Payload implements Event interface.
func (e UserFollowedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"follower_id": e.FollowerID,
		"followee_id": e.FolloweeID,
	}
}

// NewUserFollowedEvent creates a follow or unfollow event.
func NewUserFollowedEvent(eventType EventType, followerID, followeeID string) UserFollowedEvent {
	return UserFollowedEvent{
		BaseEvent:  NewBaseEvent(eventType, followerID),
		FollowerID: followerID,
		FolloweeID: followeeID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Lesson Events
// ═══════════════════════════════════════════════════════════════════════════

// LessonStartedEvent is emitted when a progress record is created.
type LessonStartedEvent struct {
	BaseEvent
	LessonID string `json:"lesson_id"`
}

// Payload implements Event interface.
func (e LessonStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"lesson_id": e.LessonID}
}

// NewLessonStartedEvent creates a new LessonStartedEvent.
func NewLessonStartedEvent(userID, lessonID string) LessonStartedEvent {
	return LessonStartedEvent{
		BaseEvent: NewBaseEvent(EventLessonStarted, userID),
		LessonID:  lessonID,
	}
}

// LessonSubmittedEvent is emitted after a graded submission, completed or failed.
type LessonSubmittedEvent struct {
	BaseEvent
	LessonID       string `json:"lesson_id"`
	Score          int    `json:"score"`
	XPEarned       int    `json:"xp_earned"`
	FeathersEarned int    `json:"feathers_earned"`
	TotalXP        int    `json:"total_xp"`
	LeaguePoints   int    `json:"league_points"`
	Streak         int    `json:"streak"`
}

// Payload implements Event interface.
func (e LessonSubmittedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"lesson_id":       e.LessonID,
		"score":           e.Score,
		"xp_earned":       e.XPEarned,
		"feathers_earned": e.FeathersEarned,
		"total_xp":        e.TotalXP,
		"league_points":   e.LeaguePoints,
		"streak":          e.Streak,
	}
}

// NewLessonCompletedEvent creates an event for a passed submission.
func NewLessonCompletedEvent(userID, lessonID string, score, xp, feathers, totalXP, leaguePoints, streak int) LessonSubmittedEvent {
	return LessonSubmittedEvent{
		BaseEvent:      NewBaseEvent(EventLessonCompleted, userID),
		LessonID:       lessonID,
		Score:          score,
		XPEarned:       xp,
		FeathersEarned: feathers,
		TotalXP:        totalXP,
		LeaguePoints:   leaguePoints,
		Streak:         streak,
	}
}

// NewLessonFailedEvent creates an event for a submission below the passing score.
func NewLessonFailedEvent(userID, lessonID string, score int) LessonSubmittedEvent {
	return LessonSubmittedEvent{
		BaseEvent: NewBaseEvent(EventLessonFailed, userID),
		LessonID:  lessonID,
		Score:     score,
	}
}

// ProgressResetEvent is emitted when a learner resets a lesson.
type ProgressResetEvent struct {
	BaseEvent
	LessonID string `json:"lesson_id"`
}

// Payload implements Event interface.
func (e ProgressResetEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"lesson_id": e.LessonID}
}

// NewProgressResetEvent creates a new ProgressResetEvent.
func NewProgressResetEvent(userID, lessonID string) ProgressResetEvent {
	return ProgressResetEvent{
		BaseEvent: NewBaseEvent(EventProgressReset, userID),
		LessonID:  lessonID,
	}
}

// StreakUpdatedEvent is emitted when the streak counter changes.
type StreakUpdatedEvent struct {
	BaseEvent
	OldStreak int `json:"old_streak"`
	NewStreak int `json:"new_streak"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_streak": e.OldStreak,
		"new_streak": e.NewStreak,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(userID string, oldStreak, newStreak int) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent: NewBaseEvent(EventStreakUpdated, userID),
		OldStreak: oldStreak,
		NewStreak: newStreak,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// League Events
// ═══════════════════════════════════════════════════════════════════════════

// LeaguePointsEvent is emitted whenever league points change.
// Type is EventLeaguePromoted when the tier changed.
type LeaguePointsEvent struct {
	BaseEvent
	OldLeague string `json:"old_league"`
	NewLeague string `json:"new_league"`
	OldPoints int    `json:"old_points"`
	NewPoints int    `json:"new_points"`
	TotalXP   int    `json:"total_xp"`
	Week      int    `json:"week"`
}

// Payload implements Event interface.
func (e LeaguePointsEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"old_league": e.OldLeague,
		"new_league": e.NewLeague,
		"old_points": e.OldPoints,
		"new_points": e.NewPoints,
		"total_xp":   e.TotalXP,
		"week":       e.Week,
	}
}

// NewLeaguePointsEvent creates a points or promotion event.
func NewLeaguePointsEvent(userID, oldLeague, newLeague string, oldPoints, newPoints, totalXP, week int) LeaguePointsEvent {
	t := EventLeaguePointsAdded
	if oldLeague != newLeague {
		t = EventLeaguePromoted
	}
	return LeaguePointsEvent{
		BaseEvent: NewBaseEvent(t, userID),
		OldLeague: oldLeague,
		NewLeague: newLeague,
		OldPoints: oldPoints,
		NewPoints: newPoints,
		TotalXP:   totalXP,
		Week:      week,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Quest Events
// ═══════════════════════════════════════════════════════════════════════════

// QuestClaimedEvent is emitted after a successful claim.
type QuestClaimedEvent struct {
	BaseEvent
	QuestID   string `json:"quest_id"`
	PeriodKey string `json:"period_key"`
	XP        int    `json:"xp"`
	Feathers  int    `json:"feathers"`
	TotalXP   int    `json:"total_xp"`
	Points    int    `json:"league_points"`
}

// Payload implements Event interface.
func (e QuestClaimedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"quest_id":      e.QuestID,
		"period_key":    e.PeriodKey,
		"xp":            e.XP,
		"feathers":      e.Feathers,
		"total_xp":      e.TotalXP,
		"league_points": e.Points,
	}
}

// NewQuestClaimedEvent creates a new QuestClaimedEvent.
func NewQuestClaimedEvent(userID, questID, periodKey string, xp, feathers, totalXP, points int) QuestClaimedEvent {
	return QuestClaimedEvent{
		BaseEvent: NewBaseEvent(EventQuestClaimed, userID),
		QuestID:   questID,
		PeriodKey: periodKey,
		XP:        xp,
		Feathers:  feathers,
		TotalXP:   totalXP,
		Points:    points,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
