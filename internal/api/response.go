package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mmynk/spendwise/internal/calculator"
	"github.com/mmynk/spendwise/internal/forecast"
	"github.com/mmynk/spendwise/internal/service"
	"github.com/mmynk/spendwise/internal/storage"
)

const (
	statusSuccess = "SUCCESS"
	statusFailed  = "FAILED"

	maxBodyBytes = 1 << 20

	// maxTZOffset is the widest UTC offset in use, in minutes.
	maxTZOffset = 14 * 60
)

// payload is merged into the response envelope next to status and message.
type payload map[string]any

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) success(w http.ResponseWriter, status int, message string, data payload) {
	body := payload{"status": statusSuccess, "message": message}
	for k, v := range data {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func (s *Server) fail(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, payload{"status": statusFailed, "message": message})
}

// errorMapping maps an error class to its HTTP status. An empty message
// passes the error text through.
type errorMapping struct {
	target  error
	status  int
	message string
}

var errorMappings = []errorMapping{
	{service.ErrInvalidArgument, http.StatusBadRequest, ""},
	{calculator.ErrInvalidSplitType, http.StatusBadRequest, "Invalid splitType. Allowed values are 'equally', 'unequally', 'percentage'."},
	{calculator.ErrInsufficientMembers, http.StatusBadRequest, "There must be at least one other member to split the expense."},
	{calculator.ErrInvalidSplitInput, http.StatusBadRequest, ""},
	{service.ErrInitiatorNotMember, http.StatusBadRequest, "You are not a member of this group."},
	{service.ErrNotGroupMember, http.StatusForbidden, "You are not a member of this group."},
	{service.ErrGroupNotFound, http.StatusNotFound, "Group not found."},
	{service.ErrTransactionNotFound, http.StatusNotFound, "Transaction not found."},
	{service.ErrNotParticipant, http.StatusBadRequest, "You do not owe a share of this transaction."},
	{service.ErrAlreadySettled, http.StatusBadRequest, "Your share of this transaction is already settled."},
	{service.ErrUserNotFound, http.StatusNotFound, "User not found."},
	{service.ErrSelfFriend, http.StatusBadRequest, "You cannot add yourself as a friend."},
	{service.ErrAlreadyFriends, http.StatusBadRequest, "You are already friends."},
	{service.ErrNoExpenses, http.StatusBadRequest, "No expense transactions found for prediction."},
	{storage.ErrConflict, http.StatusConflict, "The group was modified concurrently. Please retry."},
	{storage.ErrDuplicate, http.StatusConflict, "The record already exists."},
	{forecast.ErrForecastTimeout, http.StatusGatewayTimeout, "The prediction service timed out."},
	{forecast.ErrForecastUnavailable, http.StatusBadGateway, "The prediction service is unavailable."},
}

// writeError maps a service error to the failure envelope. Unknown errors
// are logged and reported as 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var authErr *service.AuthError
	if errors.As(err, &authErr) {
		body := payload{"status": statusFailed, "message": authErr.Message}
		if authErr.Code != 0 {
			body["errorCode"] = authErr.Code
		}
		writeJSON(w, authErr.Status, body)
		return
	}

	var unknown *service.UnknownMembersError
	if errors.As(err, &unknown) {
		writeJSON(w, http.StatusNotFound, payload{
			"status":  statusFailed,
			"message": "The following members were not found: " + strings.Join(unknown.Missing, ", "),
			"missing": unknown.Missing,
		})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			s.fail(w, m.status, msg)
			return
		}
	}

	s.logger.Error("Unhandled error", "method", r.Method, "path", r.URL.Path, "error", err)
	s.fail(w, http.StatusInternalServerError, "Internal server error")
}

var errBadBody = errors.New("invalid request body")

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errBadBody
	}
	return nil
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// parseDate accepts RFC 3339 timestamps and a few shorter forms, read as
// UTC. An empty string yields the zero time.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, true
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// tzOverride reads the optional tzOffset query parameter, in minutes east
// of UTC. A nil location means the server default.
func tzOverride(r *http.Request) (*time.Location, bool) {
	raw := r.URL.Query().Get("tzOffset")
	if raw == "" {
		return nil, true
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes < -maxTZOffset || minutes > maxTZOffset {
		return nil, false
	}
	return time.FixedZone("UTC"+raw, minutes*60), true
}
