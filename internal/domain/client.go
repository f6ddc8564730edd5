package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ClientStatus string

const (
	ClientActive   ClientStatus = "active"
	ClientArchived ClientStatus = "archived"
)

// Client is a therapy client owned by a single therapist.
type Client struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	TherapistID primitive.ObjectID   `bson:"therapistId" json:"therapistId"`
	FirstName   string               `bson:"firstName" json:"firstName"`
	LastName    string               `bson:"lastName" json:"lastName"`
	DateOfBirth *time.Time           `bson:"dateOfBirth,omitempty" json:"dateOfBirth,omitempty"`
	Diagnosis   string               `bson:"diagnosis,omitempty" json:"diagnosis,omitempty"`
	Notes       string               `bson:"notes,omitempty" json:"notes,omitempty"`
	Status      ClientStatus         `bson:"status" json:"status"`
	Goals       []Goal               `bson:"goals" json:"goals"`
	ParentIDs   []primitive.ObjectID `bson:"parentIds" json:"parentIds"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

func (c *Client) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// HasParent reports whether parentID is linked to the client.
func (c *Client) HasParent(parentID primitive.ObjectID) bool {
	for _, id := range c.ParentIDs {
		if id == parentID {
			return true
		}
	}
	return false
}

// Goal finds an embedded goal by id.
func (c *Client) Goal(goalID primitive.ObjectID) (*Goal, bool) {
	for i := range c.Goals {
		if c.Goals[i].ID == goalID {
			return &c.Goals[i], true
		}
	}
	return nil, false
}

type GoalStatus string

const (
	GoalNotStarted   GoalStatus = "not_started"
	GoalInProgress   GoalStatus = "in_progress"
	GoalAchieved     GoalStatus = "achieved"
	GoalDiscontinued GoalStatus = "discontinued"
)

func (s GoalStatus) Valid() bool {
	switch s {
	case GoalNotStarted, GoalInProgress, GoalAchieved, GoalDiscontinued:
		return true
	}
	return false
}

// Goal is a treatment goal embedded in a Client document.
type Goal struct {
	ID          primitive.ObjectID `bson:"id" json:"id"`
	Description string             `bson:"description" json:"description"`
	Category    string             `bson:"category,omitempty" json:"category,omitempty"`
	TargetDate  *time.Time         `bson:"targetDate,omitempty" json:"targetDate,omitempty"`
	Status      GoalStatus         `bson:"status" json:"status"`
	Progress    int                `bson:"progress" json:"progress"` // 0-100
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
