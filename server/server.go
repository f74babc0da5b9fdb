package server

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"castfeed/feeds"
	"castfeed/monitoring"
	"castfeed/storage"
	"castfeed/storage/models"
	"castfeed/utils"
)

// Server is the thin HTTP surface over the ranker. Authentication happens
// upstream; the gateway forwards the caller's account id in X-Account-Id
// and the session credential in X-Credential-Id.
type Server struct {
	addr           string
	ranker         *feeds.Ranker
	storageManager *storage.Manager
}

func NewServer(addr string, ranker *feeds.Ranker, storageManager *storage.Manager) Server {
	return Server{
		addr:           addr,
		ranker:         ranker,
		storageManager: storageManager,
	}
}

func (s *Server) Run() {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/feeds/members/me/foryou", s.getMemberFeed)
	mux.HandleFunc("GET /v2/feeds/guests", s.getGuestFeed)
	mux.HandleFunc("POST /v2/feeds/{id}/seen", s.postSeen)
	mux.HandleFunc("POST /v2/feeds/{id}/off-screen", s.postOffScreen)
	mux.HandleFunc("POST /v2/contents", s.postContent)
	mux.HandleFunc("POST /v2/contents/{id}/liked", s.postLiked)
	mux.HandleFunc("POST /v2/contents/{id}/unliked", s.postUnliked)
	mux.HandleFunc("POST /v2/users/{id}/follow", s.postFollow)
	mux.HandleFunc("POST /v2/users/{id}/unfollow", s.postUnfollow)
	mux.HandleFunc("POST /v2/users/{id}/block", s.postBlock)
	mux.HandleFunc("POST /v2/users/{id}/unblock", s.postUnblock)
	mux.Handle("GET /metrics", promhttp.Handler())

	err := http.ListenAndServe(s.addr, monitoring.NewPrometheusMiddleware(mux))
	if errors.Is(err, http.ErrServerClosed) {
		fmt.Printf("server closed\n")
	} else if err != nil {
		fmt.Printf("error starting server: %s\n", err)
		os.Exit(1)
	}
}

func (s *Server) getMemberFeed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	account, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	query, err := parseFeedQuery(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}

	response, err := s.ranker.GetMemberFeedItems(r.Context(), account, query)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			sendError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Errorf("Error assembling member feed: %v", err)
		sendError(w, http.StatusInternalServerError, "could not assemble feed")
		return
	}
	w.Write(utils.ToJson(response))
}

func (s *Server) getGuestFeed(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	query, err := parseFeedQuery(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	exclude, err := parseObjectIDList(r.URL.Query().Get("excludeContents"))
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid excludeContents param")
		return
	}

	// Guests have no stored account; country comes straight off the query.
	viewer := models.Account{
		Geolocation: models.Geolocation{
			CountryCode: r.URL.Query().Get("country"),
		},
	}

	response, err := s.ranker.GetGuestFeedItems(r.Context(), query, viewer, exclude)
	if err != nil {
		log.Errorf("Error assembling guest feed: %v", err)
		sendError(w, http.StatusInternalServerError, "could not assemble feed")
		return
	}
	w.Write(utils.ToJson(response))
}

func (s *Server) postSeen(w http.ResponseWriter, r *http.Request) {
	account, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	feedItemID, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid feed item id")
		return
	}
	credentialID, err := primitive.ObjectIDFromHex(r.Header.Get("X-Credential-Id"))
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid credential id")
		return
	}

	if err = s.ranker.SeenFeedItem(r.Context(), account, feedItemID, credentialID); err != nil {
		sendError(w, http.StatusInternalServerError, "could not mark feed item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) postOffScreen(w http.ResponseWriter, r *http.Request) {
	account, ok := s.requireAccount(w, r)
	if !ok {
		return
	}
	feedItemID, err := primitive.ObjectIDFromHex(r.PathValue("id"))
	if err != nil {
		sendError(w, http.StatusBadRequest, "invalid feed item id")
		return
	}

	if err = s.ranker.OffScreenFeedItem(r.Context(), account, feedItemID); err != nil {
		sendError(w, http.StatusInternalServerError, "could not mark feed item")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) requireAccount(w http.ResponseWriter, r *http.Request) (models.Account, bool) {
	accountID, err := primitive.ObjectIDFromHex(r.Header.Get("X-Account-Id"))
	if err != nil {
		sendError(w, http.StatusUnauthorized, "missing account")
		return models.Account{}, false
	}
	account, err := s.storageManager.GetAccount(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			sendError(w, http.StatusNotFound, "account not found")
		} else {
			sendError(w, http.StatusInternalServerError, "could not load account")
		}
		return models.Account{}, false
	}
	return account, true
}
