package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/bizdesk/internal/common"
	"github.com/dmitrijs2005/bizdesk/internal/server/auth"
)

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userView struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	Activated bool   `json:"activated"`
}

type loginResponse struct {
	Token     string   `json:"token"`
	ExpiresIn int64    `json:"expires_in"`
	User      userView `json:"user"`
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	u, err := a.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "user registered, check your email to activate the account",
		"user":    userView{ID: u.ID, Username: u.Username, Email: u.Email, Activated: u.Activated},
	})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	w.Header().Set(common.AuthorizationHeaderName, common.BearerPrefix+res.Token)
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     res.Token,
		ExpiresIn: int64(res.ExpiresIn.Seconds()),
		User:      userView{ID: res.User.ID, Username: res.User.Username, Email: res.User.Email, Activated: res.User.Activated},
	})
}

func (a *API) activate(w http.ResponseWriter, r *http.Request) {
	if err := a.auth.Activate(r.Context(), r.URL.Query().Get("token")); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "account activated"})
}

func (a *API) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "password reset email sent"})
}

// resetPassword takes the reset token as bearer credential; a "token" body
// field is accepted when the header is absent.
func (a *API) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token           string `json:"token"`
		NewPassword     string `json:"new_password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	token, err := extractBearerToken(r.Header.Get(common.AuthorizationHeaderName))
	if err != nil {
		token = req.Token
	}

	if err := a.auth.ResetPassword(r.Context(), token, req.NewPassword, req.ConfirmPassword); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "password updated"})
}

func (a *API) me(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       id.ID,
		"username": id.Username,
		"email":    id.Email,
	})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	if err := a.auth.Logout(r.Context(), id); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "logged out"})
}

func (a *API) directory(w http.ResponseWriter, r *http.Request, id auth.Identity) {
	out, err := a.auth.Directory(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
