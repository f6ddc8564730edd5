package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Media stores metadata about a file attached to a session.
// The actual file resides in S3.
type Media struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID   primitive.ObjectID `bson:"sessionId" json:"sessionId"`
	ClientID    primitive.ObjectID `bson:"clientId" json:"clientId"`
	TherapistID primitive.ObjectID `bson:"therapistId" json:"therapistId"`
	ObjectKey   string             `bson:"objectKey" json:"-"`
	FileName    string             `bson:"fileName" json:"fileName"`
	ContentType string             `bson:"contentType" json:"contentType"`
	Size        int64              `bson:"size" json:"size"`
	UploadedAt  time.Time          `bson:"uploadedAt" json:"uploadedAt"`
}
