package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Goal is a patient's rehabilitation target tracked between sessions.
type Goal struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PatientID         primitive.ObjectID `bson:"patientId" json:"patientId"`
	Name              string             `bson:"name" json:"name"`
	Duration          string             `bson:"duration" json:"duration"`
	Type              string             `bson:"type" json:"type"`
	Progress          int                `bson:"progress" json:"progress"`
	Priority          GoalPriority       `bson:"priority" json:"priority"`
	Status            GoalStatus         `bson:"status" json:"status"`
	Current           *float64           `bson:"current,omitempty" json:"current,omitempty"`
	Target            *float64           `bson:"target,omitempty" json:"target,omitempty"`
	Unit              string             `bson:"unit,omitempty" json:"unit,omitempty"`
	LatestAchievement string             `bson:"latestAchievement,omitempty" json:"latestAchievement,omitempty"`
	TargetDate        *time.Time         `bson:"targetDate,omitempty" json:"targetDate,omitempty"`
	LastUpdated       time.Time          `bson:"lastUpdated" json:"lastUpdated"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// GoalChanges holds the fields a patient may edit. Nil means unchanged.
type GoalChanges struct {
	Name              *string
	Progress          *int
	Current           *float64
	Target            *float64
	LatestAchievement *string
	Status            *GoalStatus
}

// Apply copies the non-nil changes onto g.
func (c GoalChanges) Apply(g *Goal) {
	if c.Name != nil {
		g.Name = *c.Name
	}
	if c.Progress != nil {
		g.Progress = *c.Progress
	}
	if c.Current != nil {
		g.Current = c.Current
	}
	if c.Target != nil {
		g.Target = c.Target
	}
	if c.LatestAchievement != nil {
		g.LatestAchievement = *c.LatestAchievement
	}
	if c.Status != nil {
		g.Status = *c.Status
	}
}
