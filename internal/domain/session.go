package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Session is a single therapy session note for a client.
type Session struct {
	ID                primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	ClientID          primitive.ObjectID   `bson:"clientId" json:"clientId"`
	TherapistID       primitive.ObjectID   `bson:"therapistId" json:"therapistId"`
	Date              time.Time            `bson:"date" json:"date"`
	DurationMinutes   int                  `bson:"durationMinutes" json:"durationMinutes"`
	Activities        []Activity           `bson:"activities" json:"activities"`
	Observations      string               `bson:"observations,omitempty" json:"observations,omitempty"`
	Notes             string               `bson:"notes,omitempty" json:"notes,omitempty"`
	GoalProgress      []GoalProgress       `bson:"goalProgress,omitempty" json:"goalProgress,omitempty"`
	MediaIDs          []primitive.ObjectID `bson:"mediaIds" json:"mediaIds"`
	SharedWithParents bool                 `bson:"sharedWithParents" json:"sharedWithParents"`
	CreatedAt         time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// Activity is one exercise performed during a session, or listed in a template.
type Activity struct {
	Name        string `bson:"name" json:"name"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	Trials      int    `bson:"trials,omitempty" json:"trials,omitempty"`
	Successes   int    `bson:"successes,omitempty" json:"successes,omitempty"`
	PromptLevel string `bson:"promptLevel,omitempty" json:"promptLevel,omitempty"`
	Notes       string `bson:"notes,omitempty" json:"notes,omitempty"`
}

// SuccessRate returns successes/trials as a percentage, or -1 when no trials were recorded.
func (a Activity) SuccessRate() int {
	if a.Trials <= 0 {
		return -1
	}
	return a.Successes * 100 / a.Trials
}

// GoalProgress records progress on a client goal observed in a session.
type GoalProgress struct {
	GoalID   primitive.ObjectID `bson:"goalId" json:"goalId"`
	Progress int                `bson:"progress" json:"progress"`
	Note     string             `bson:"note,omitempty" json:"note,omitempty"`
}
