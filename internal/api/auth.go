package api

import (
	"net/http"

	"github.com/mmynk/spendwise/internal/middleware"
	"github.com/mmynk/spendwise/internal/service"
)

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type signinRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type resetPasswordRequest struct {
	Email       string `json:"email"`
	NewPassword string `json:"newPassword"`
}

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := s.auth.Signup(r.Context(), req.Name, req.Email, req.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "OTP sent to your email. Please verify to complete signup.", nil)
}

func (s *Server) verifySignup(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	session, err := s.auth.VerifySignup(r.Context(), req.Email, req.OTP)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusCreated, "Signup successful!", sessionPayload(session))
}

func (s *Server) resendSignupOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := s.auth.ResendSignupOTP(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "New OTP sent to your email.", nil)
}

func (s *Server) signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	session, err := s.auth.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "Sign-in successful!", sessionPayload(session))
}

func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	access, err := s.auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "Access token refreshed successfully!", payload{"accessToken": access})
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := s.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "OTP sent to your email for password reset.", nil)
}

func (s *Server) resendResetOTP(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := s.auth.ResendResetOTP(r.Context(), req.Email); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "New OTP sent to your email.", nil)
}

func (s *Server) verifyResetOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := s.auth.VerifyResetOTP(r.Context(), req.Email, req.OTP); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "OTP verified. You can now reset your password.", nil)
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decode(w, r, &req); err != nil {
		s.fail(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := s.auth.ResetPassword(r.Context(), req.Email, req.NewPassword); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "Password reset successful!", nil)
}

// logout is stateless: tokens are bearer credentials the client discards.
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.success(w, http.StatusOK, "Logged out successfully!", nil)
}

func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	user, err := s.auth.Me(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.success(w, http.StatusOK, "User fetched successfully!", payload{"user": user})
}

func sessionPayload(session *service.Session) payload {
	return payload{
		"accessToken":  session.AccessToken,
		"refreshToken": session.RefreshToken,
		"user":         session.User,
	}
}
