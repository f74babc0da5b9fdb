package server

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"castfeed/feeds"
	"castfeed/utils"
)

func sendError(w http.ResponseWriter, errorCode int, message string) {
	log.Info(message)
	w.WriteHeader(errorCode)
	resp := map[string]string{
		"error": message,
	}
	w.Write(utils.ToJson(resp))
}

func parseFeedQuery(r *http.Request) (feeds.FeedQuery, error) {
	values := r.URL.Query()
	query := feeds.FeedQuery{
		SinceID: values.Get("sinceId"),
		UntilID: values.Get("untilId"),
		Mode:    values.Get("mode"),
	}

	if maxResultsStr := values.Get("maxResults"); maxResultsStr != "" {
		maxResults, err := strconv.ParseInt(maxResultsStr, 10, 64)
		if err != nil || maxResults < 0 {
			return query, fmt.Errorf("invalid maxResults param")
		}
		query.MaxResults = maxResults
	}
	if expansionStr := values.Get("hasRelationshipExpansion"); expansionStr != "" {
		expansion, err := strconv.ParseBool(expansionStr)
		if err != nil {
			return query, fmt.Errorf("invalid hasRelationshipExpansion param")
		}
		query.HasRelationshipExpansion = expansion
	}
	if userFields := values.Get("userFields"); userFields != "" {
		query.UserFields = strings.Split(userFields, ",")
	}
	return query, nil
}

func parseObjectIDList(raw string) ([]primitive.ObjectID, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]primitive.ObjectID, 0, len(parts))
	for _, part := range parts {
		id, err := primitive.ObjectIDFromHex(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
