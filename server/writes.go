package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"castfeed/storage"
	"castfeed/storage/models"
	"castfeed/utils"
)

type createContentRequest struct {
	Type        string   `json:"type"`
	Message     string   `json:"message"`
	Photos      []string `json:"photo,omitempty"`
	Link        string   `json:"link,omitempty"`
	Language    string   `json:"language,omitempty"`
	CountryCode string   `json:"countryCode,omitempty"`
}

func (s *Server) postContent(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	user, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var body createContentRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		sendError(w, http.StatusBadRequest, "invalid content body")
		return
	}

	content := models.Content{
		Author: user.ToAuthor(),
		Type:   models.ContentType(body.Type),
		Payload: models.ContentPayload{
			Message: body.Message,
			Photos:  body.Photos,
			Link:    body.Link,
		},
		Language:    body.Language,
		CountryCode: body.CountryCode,
	}
	if err := s.storageManager.CreateContent(r.Context(), &content); err != nil {
		sendError(w, http.StatusInternalServerError, "could not create content")
		return
	}
	w.WriteHeader(http.StatusCreated)
	w.Write(utils.ToJson(map[string]string{"id": content.ID.Hex()}))
}

func (s *Server) postLiked(w http.ResponseWriter, r *http.Request) {
	user, contentID, ok := s.requireUserAndTarget(w, r)
	if !ok {
		return
	}
	err := s.storageManager.CreateEngagement(r.Context(), models.Engagement{
		User: user.ID,
		TargetRef: models.TargetRef{
			Type: models.ContentTarget,
			ID:   contentID,
		},
		Type: models.LikeEngagement,
	})
	if err != nil {
		sendError(w, http.StatusInternalServerError, "could not like content")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postUnliked(w http.ResponseWriter, r *http.Request) {
	user, contentID, ok := s.requireUserAndTarget(w, r)
	if !ok {
		return
	}
	err := s.storageManager.RemoveEngagement(r.Context(), user.ID, models.TargetRef{
		Type: models.ContentTarget,
		ID:   contentID,
	})
	if err != nil {
		sendError(w, http.StatusInternalServerError, "could not unlike content")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postFollow(w http.ResponseWriter, r *http.Request) {
	user, targetID, ok := s.requireUserAndTarget(w, r)
	if !ok {
		return
	}
	if !s.requireTargetUser(w, r, targetID) {
		return
	}
	if err := s.storageManager.Follow(r.Context(), user.ID, targetID); err != nil {
		sendError(w, http.StatusInternalServerError, "could not follow user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postUnfollow(w http.ResponseWriter, r *http.Request) {
	user, targetID, ok := s.requireUserAndTarget(w, r)
	if !ok {
		return
	}
	if err := s.storageManager.Unfollow(r.Context(), user.ID, targetID); err != nil {
		sendError(w, http.StatusInternalServerError, "could not unfollow user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postBlock(w http.ResponseWriter, r *http.Request) {
	user, targetID, ok := s.requireUserAndTarget(w, r)
	if !ok {
		return
	}
	if !s.requireTargetUser(w, r, targetID) {
		return
	}
	if err := s.storageManager.BlockUser(r.Context(), user.ID, targetID); err != nil {
		sendError(w, http.StatusInternalServerError, "could not block user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postUnblock(w http.ResponseWriter, r *http.Request) {
	user, targetID, ok := s.requireUserAndTarget(w, r)
	if !ok {
		return
	}
	if err := s.storageManager.UnblockUser(r.Context(), user.ID, targetID); err != nil {
		sendError(w, http.StatusInternalServerError, "could not unblock user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireUser resolves the calling account's person user.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) (models.User, bool) {
	account, ok := s.requireAccount(w, r)
	if !ok {
		return models.User{}, false
	}
	user, err := s.storageManager.GetUserByAccount(r.Context(), account.ID)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			sendError(w, http.StatusNotFound, "user not found")
		} else {
			sendError(w, http.StatusInternalServerError, "could not load user")
		}
		return models.User{}, false
	}
	return user, true
}

// requireUserAndTarget resolves the caller's user plus the {id} path value.
func (s *Server) requireUserAndTarget(w http.ResponseWriter, r *http.Request) (models.User, primitive.ObjectID, bool) {
	user, ok := s.requireUser(w, r)
	if !ok {
		return models.User{}, primitive.NilObjectID, false
	}
	targetID, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid id")
		return models.User{}, primitive.NilObjectID, false
	}
	return user, targetID, true
}

// requireTargetUser checks the target user exists before creating an edge
// towards it. Removal paths skip the check: they are no-ops on absence.
func (s *Server) requireTargetUser(w http.ResponseWriter, r *http.Request, targetID primitive.ObjectID) bool {
	targets, err := s.storageManager.GetUsersByIDs(r.Context(), []primitive.ObjectID{targetID})
	if err != nil {
		sendError(w, http.StatusInternalServerError, "could not load user")
		return false
	}
	if len(targets) == 0 {
		sendError(w, http.StatusNotFound, "user not found")
		return false
	}
	return true
}
