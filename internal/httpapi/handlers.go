package httpapi

import (
	"net/http"

	"github.com/MrEthical07/classgate"
	"github.com/MrEthical07/classgate/middleware"
)

type sendCodeRequest struct {
	Email string `json:"email"`
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	OTP      string `json:"otp"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type joinRequest struct {
	ClassroomID  string `json:"classroomId"`
	StudentEmail string `json:"studentEmail"`
	Code         string `json:"code"`
}

type sessionResponse struct {
	User         classgate.User `json:"user"`
	AuthToken    string         `json:"authToken"`
	RefreshToken string         `json:"refreshToken"`
}

func (s *Server) handleSendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := s.svc.RequestRegistrationCode(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "OTP sent successfully", nil)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	session, err := s.svc.CompleteRegistration(r.Context(), classgate.RegistrationInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Code:     req.OTP,
		Role:     classgate.Role(req.Role),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	s.setSessionCookies(w, session)
	writeOK(w, http.StatusCreated, "User registered successfully", newSessionResponse(session))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	session, err := s.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	s.setSessionCookies(w, session)
	writeOK(w, http.StatusOK, "Login successful", newSessionResponse(session))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token := ""
	if c, err := r.Cookie(classgate.RefreshCookieName); err == nil {
		token = c.Value
	}
	if token == "" && r.ContentLength != 0 {
		var req refreshRequest
		if err := decodeJSON(w, r, &req); err == nil {
			token = req.RefreshToken
		}
	}

	session, err := s.svc.Refresh(r.Context(), token)
	if err != nil {
		s.clearSessionCookies(w)
		writeError(w, err)
		return
	}

	s.setSessionCookies(w, session)
	writeOK(w, http.StatusOK, "Session refreshed", newSessionResponse(session))
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	s.clearSessionCookies(w)
	writeOK(w, http.StatusOK, "Logged out successfully", nil)
}

func (s *Server) handleCheckLogin(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, envelope{OK: true, Message: "Logged in", UserID: id.UserID})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	user, err := s.svc.User(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "User found", user)
}

func (s *Server) handleProfileStats(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	stats, err := s.svc.ProfileStats(r.Context(), id.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "Profile stats", stats)
}

func (s *Server) handleJoinRequest(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, _ := middleware.IdentityFromContext(r.Context())
	if err := s.svc.RequestJoin(r.Context(), caller, req.ClassroomID, req.StudentEmail); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusAccepted, "Join request sent to the classroom owner", nil)
}

func (s *Server) handleJoinRedeem(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, _ := middleware.IdentityFromContext(r.Context())
	result, err := s.svc.RedeemJoin(r.Context(), caller, req.ClassroomID, req.StudentEmail, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}

	message := "Joined classroom"
	if result.AlreadyMember {
		message = "Already a member"
	}
	writeOK(w, http.StatusOK, message, map[string]any{
		"classroomId":   result.ClassroomID,
		"studentEmail":  result.StudentEmail,
		"alreadyMember": result.AlreadyMember,
	})
}

func (s *Server) handleJoinCancel(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	caller, _ := middleware.IdentityFromContext(r.Context())
	if err := s.svc.CancelJoin(r.Context(), caller, req.ClassroomID, req.StudentEmail); err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, http.StatusOK, "Join request cancelled", nil)
}

func newSessionResponse(session *classgate.Session) sessionResponse {
	return sessionResponse{
		User:         session.User,
		AuthToken:    session.AccessToken,
		RefreshToken: session.RefreshToken,
	}
}
