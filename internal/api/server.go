// Package api exposes the services over JSON REST.
//
// Every response uses the envelope
//
//	{"status": "SUCCESS" | "FAILED", "message": "...", ...payload}
//
// with a meaningful HTTP status code. Auth failures additionally carry a
// numeric errorCode.
package api

import (
	"log/slog"
	"net/http"

	"github.com/mmynk/spendwise/internal/auth"
	"github.com/mmynk/spendwise/internal/metrics"
	"github.com/mmynk/spendwise/internal/middleware"
	"github.com/mmynk/spendwise/internal/service"
)

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	Auth         *service.AuthService
	Groups       *service.GroupService
	Transactions *service.TransactionService
	Friends      *service.FriendService
	Predictions  *service.PredictionService

	JWT   *auth.JWTManager
	Users middleware.UserLookup

	// Metrics is optional; /metrics is only served when set.
	Metrics *metrics.Metrics

	Logger     *slog.Logger
	CORSOrigin string
}

// Server routes requests to the services.
type Server struct {
	auth         *service.AuthService
	groups       *service.GroupService
	transactions *service.TransactionService
	friends      *service.FriendService
	predictions  *service.PredictionService

	logger  *slog.Logger
	handler http.Handler
}

// NewServer builds the router and middleware chain.
func NewServer(d Deps) *Server {
	s := &Server{
		auth:         d.Auth,
		groups:       d.Groups,
		transactions: d.Transactions,
		friends:      d.Friends,
		predictions:  d.Predictions,
		logger:       d.Logger,
	}

	mux := http.NewServeMux()
	requireAuth := middleware.RequireAuth(d.JWT, d.Users, d.Logger)
	protected := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, requireAuth(h))
	}

	mux.HandleFunc("GET /healthz", s.healthz)
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics.Handler())
	}

	// Auth
	mux.HandleFunc("POST /user/signup", s.signup)
	mux.HandleFunc("POST /user/verify-otp", s.verifySignup)
	mux.HandleFunc("POST /user/resend-otp-signup", s.resendSignupOTP)
	mux.HandleFunc("POST /user/signin", s.signin)
	mux.HandleFunc("POST /user/refresh-token", s.refreshToken)
	mux.HandleFunc("POST /user/forgot-password", s.forgotPassword)
	mux.HandleFunc("POST /user/resend-otp-forgot-password", s.resendResetOTP)
	mux.HandleFunc("POST /user/verify-reset-otp", s.verifyResetOTP)
	mux.HandleFunc("POST /user/reset-password", s.resetPassword)
	mux.HandleFunc("POST /user/logout", s.logout)
	protected("GET /user/me", s.me)

	// Groups
	protected("POST /groups/create", s.createGroup)
	protected("POST /groups/add-expense", s.addGroupExpense)
	protected("GET /groups", s.listGroups)
	protected("GET /groups/{groupId}", s.getGroup)
	protected("POST /groups/{groupId}/transaction", s.addGroupTransaction)
	protected("GET /groups/{groupId}/balances", s.groupBalances)
	protected("POST /groups/{groupId}/transactions/{transactionId}/settle", s.settleShare)

	// Personal transactions and summaries. The graph routes are the names
	// older clients use for the summaries.
	protected("POST /transaction/add", s.addTransaction)
	protected("GET /transaction/list", s.listTransactions)
	protected("PUT /transaction/edit/{id}", s.editTransaction)
	protected("DELETE /transaction/delete/{id}", s.deleteTransaction)
	protected("GET /transaction/today", s.today)
	protected("GET /transaction/graph1", s.today)
	protected("GET /transaction/weekly", s.weekly)
	protected("GET /transaction/graph2", s.weekly)
	protected("GET /transaction/monthly", s.monthly)
	protected("GET /transaction/graph3", s.monthly)
	protected("GET /homepage/home", s.home)
	protected("PUT /settings/balance", s.setAccountBalance)

	// Friends
	protected("POST /friends/add", s.addFriend)
	protected("GET /friends", s.listFriends)

	// Forecast
	protected("GET /predict/expense", s.predictExpense)

	var observer middleware.RequestObserver
	if d.Metrics != nil {
		observer = d.Metrics
	}
	s.handler = middleware.Logging(d.Logger, observer)(middleware.CORS(d.CORSOrigin)(mux))
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	s.success(w, http.StatusOK, "ok", nil)
}
