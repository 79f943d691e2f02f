package api

import (
	"errors"
	"net/http"

	"github.com/mmynk/spendwise/internal/middleware"
	"github.com/mmynk/spendwise/internal/service"
)

type addFriendRequest struct {
	FriendEmail string `json:"friendEmail"`
}

func (s *Server) addFriend(w http.ResponseWriter, r *http.Request) {
	var req addFriendRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}

	friend, err := s.friends.AddFriend(r.Context(), middleware.GetUserID(r.Context()), req.FriendEmail)
	if errors.Is(err, service.ErrUserNotFound) {
		s.fail(w, http.StatusNotFound, "Friend not found in the system.")
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusCreated, "Friend added successfully!", payload{"friend": friend})
}

func (s *Server) listFriends(w http.ResponseWriter, r *http.Request) {
	friends, err := s.friends.ListFriends(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "Friends fetched successfully!", payload{"friends": friends})
}
