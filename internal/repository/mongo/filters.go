package mongo

import (
	"regexp"
	"strings"

	"regulie/therapy-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// containsRegex matches s anywhere in the field, case-insensitively, with regex
// metacharacters in s treated literally.
func containsRegex(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

// buildClientFilter translates a ClientFilter into a MongoDB query document.
// Every search term must match either the first or the last name.
func buildClientFilter(f repository.ClientFilter) bson.M {
	filter := bson.M{}
	if !f.TherapistID.IsZero() {
		filter["therapistId"] = f.TherapistID
	}
	if !f.ParentID.IsZero() {
		filter["parentIds"] = f.ParentID
	}

	if terms := strings.Fields(f.Search); len(terms) > 0 {
		and := bson.A{}
		for _, term := range terms {
			re := containsRegex(term)
			and = append(and, bson.M{"$or": bson.A{
				bson.M{"firstName": re},
				bson.M{"lastName": re},
			}})
		}
		filter["$and"] = and
	}

	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.GoalStatus != "" {
		filter["goals.status"] = f.GoalStatus
	}
	if f.HasParent != nil {
		filter["parentIds.0"] = bson.M{"$exists": *f.HasParent}
	}
	return filter
}

// buildSessionFilter translates a SessionFilter into a MongoDB query document.
func buildSessionFilter(f repository.SessionFilter) bson.M {
	filter := bson.M{}
	if !f.TherapistID.IsZero() {
		filter["therapistId"] = f.TherapistID
	}
	if !f.ClientID.IsZero() {
		filter["clientId"] = f.ClientID
	}

	if f.From != nil || f.To != nil {
		dateRange := bson.M{}
		if f.From != nil {
			dateRange["$gte"] = f.From.UTC()
		}
		if f.To != nil {
			dateRange["$lte"] = f.To.UTC()
		}
		filter["date"] = dateRange
	}

	if activity := strings.TrimSpace(f.Activity); activity != "" {
		filter["activities.name"] = containsRegex(activity)
	}
	if f.SharedOnly {
		filter["sharedWithParents"] = true
	}
	return filter
}
