package api

import (
	"net/http"
	"strconv"
	"time"

	"regulie/therapy-app/internal/repository"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const dateLayout = "2006-01-02"

// bindJSON binds the body into dst, aborting with 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return false
	}
	return true
}

// pathID parses the named path parameter as an ObjectID, aborting with 400 when malformed.
func pathID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid "+name+" format")
		return primitive.NilObjectID, false
	}
	return id, true
}

// optionalObjectID parses an optional hex id. An empty string yields NilObjectID.
func optionalObjectID(c *gin.Context, name, value string) (primitive.ObjectID, bool) {
	if value == "" {
		return primitive.NilObjectID, true
	}
	id, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid "+name+" format")
		return primitive.NilObjectID, false
	}
	return id, true
}

// pageQuery reads ?page and ?limit. Out-of-range values are clamped by the repository.
func pageQuery(c *gin.Context) (repository.Page, bool) {
	var p repository.Page
	var err error
	if v := c.Query("page"); v != "" {
		if p.Page, err = strconv.Atoi(v); err != nil {
			abortWithError(c, http.StatusBadRequest, "page must be an integer")
			return p, false
		}
	}
	if v := c.Query("limit"); v != "" {
		if p.Limit, err = strconv.Atoi(v); err != nil {
			abortWithError(c, http.StatusBadRequest, "limit must be an integer")
			return p, false
		}
	}
	return p.Normalize(), true
}

// timeQuery reads an optional RFC 3339 or YYYY-MM-DD query parameter.
// A bare date used as an upper bound covers the whole day.
func timeQuery(c *gin.Context, name string, endOfDay bool) (*time.Time, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, true
	}
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, name+" must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
		return nil, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, true
}

// boolQuery reads an optional boolean query parameter.
func boolQuery(c *gin.Context, name string) (*bool, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, name+" must be true or false")
		return nil, false
	}
	return &b, true
}
