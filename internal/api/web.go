package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/manish3089/Token-Generator/internal/messaging"
	"github.com/manish3089/Token-Generator/internal/sharekhan"
	"github.com/manish3089/Token-Generator/pkg/models"
	"github.com/sirupsen/logrus"
)

const authorizedMessage = "Authorization successful! Now enter your credentials to complete token generation."

type pageData struct {
	AppID    string
	AuthCode string
	Message  string
	Success  bool
	Error    string
	Token    *models.TokenResult
	Data     string
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "form.html", pageData{AppID: s.cfg.Sharekhan.APIKey})
}

// handleLogin redirects the browser to the broker's hosted login page
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	appID := r.URL.Query().Get("app_id")
	if appID == "" {
		s.render(w, http.StatusBadRequest, "result.html", pageData{Error: "app_id is required."})
		return
	}

	loginURL := s.exchanger.LoginURL(appID)
	s.logger.WithField("url", loginURL).Info("Redirecting to Sharekhan login")
	http.Redirect(w, r, loginURL, http.StatusTemporaryRedirect)
}

// handleCallback receives the broker redirect after login
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.logger.WithFields(logrus.Fields{
		"request_id":        requestID(r.Context()),
		"has_request_token": q.Get("request_token") != "",
		"has_code":          q.Get("code") != "",
		"state":             q.Get("state"),
	}).Info("Callback received")

	authCode, err := sharekhan.AuthorizationCode(q)
	if err != nil {
		s.render(w, http.StatusOK, "result.html", pageData{Error: err.Error()})
		return
	}

	s.render(w, http.StatusOK, "form.html", pageData{
		AppID:    s.cfg.Sharekhan.APIKey,
		AuthCode: authCode,
		Message:  authorizedMessage,
	})
}

// handleGenerateToken completes the exchange, or starts the login when no
// authorization code has been obtained yet
func (s *Server) handleGenerateToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, http.StatusBadRequest, "result.html", pageData{Error: "Invalid form submission."})
		return
	}

	appID := r.PostForm.Get("app_id")
	secretID := r.PostForm.Get("secret_id")
	authCode := r.PostForm.Get("auth_code")

	if appID == "" || secretID == "" {
		s.render(w, http.StatusBadRequest, "result.html", pageData{Error: "app_id and secret_id are required."})
		return
	}

	if authCode == "" {
		http.Redirect(w, r, s.exchanger.LoginURL(appID), http.StatusFound)
		return
	}

	result, err := s.exchanger.ExchangeToken(r.Context(), appID, authCode, secretID)
	if err != nil {
		s.logger.WithError(err).WithField("request_id", requestID(r.Context())).Warn("Token generation failed")
		s.render(w, http.StatusOK, "result.html", pageData{Error: describeError(err)})
		return
	}

	if err := s.tokens.SaveToken(r.Context(), result.Record()); err != nil {
		s.logger.WithError(err).Warn("Failed to cache access token")
	}
	if err := s.publisher.PublishTokenIssued(&messaging.TokenIssuedEvent{
		APIKey:       result.APIKey,
		Status:       result.Status,
		PayloadShape: result.PayloadShape,
		IssuedAt:     result.IssuedAt,
	}); err != nil {
		s.logger.WithError(err).Warn("Failed to publish token event")
	}

	s.render(w, http.StatusOK, "result.html", pageData{Success: true, Token: result, Data: formatData(result.Data)})
}

// formatData renders the broker's data value as indented JSON
func formatData(v interface{}) string {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}

func (s *Server) render(w http.ResponseWriter, status int, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.WithError(err).WithField("template", name).Error("Failed to render template")
	}
}

// describeError turns an exchange failure into the message shown to the user
func describeError(err error) string {
	var terr *sharekhan.TransportError
	if errors.As(err, &terr) {
		if terr.StatusCode == 0 {
			return fmt.Sprintf("Request error: %v", terr.Err)
		}
		var detail interface{}
		if json.Unmarshal([]byte(terr.Body), &detail) == nil {
			return fmt.Sprintf("API error: %v", detail)
		}
		return fmt.Sprintf("HTTP %d: %s", terr.StatusCode, terr.Body)
	}
	return fmt.Sprintf("Unexpected error: %v", err)
}
