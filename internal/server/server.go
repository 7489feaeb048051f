package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"mandi/internal/app"
	"mandi/internal/util"
	"mandi/pkg/domain"
	"mandi/pkg/market"
	"mandi/pkg/storage"
	"mandi/pkg/voice"
)

const (
	maxBodyBytes  = 1 << 20
	maxPhotoBytes = 8 << 20
	photoLinkTTL  = 7 * 24 * time.Hour
)

// Fixed participant ids: the engine serves a single vendor/buyer pair per
// deployment, so threads always bind the same two parties.
const (
	vendorParticipantID = "vendor-1"
	buyerParticipantID  = "buyer-1"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App      *app.App
	Voice    voice.Recognizer
	Photos   storage.PhotoStore
	Sessions *SessionSigner
}

// Server exposes the marketplace HTTP API.
type Server struct {
	app      *app.App
	voice    voice.Recognizer
	photos   storage.PhotoStore
	sessions *SessionSigner
	mux      *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:      cfg.App,
		voice:    cfg.Voice,
		photos:   cfg.Photos,
		sessions: cfg.Sessions,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/session", s.handleSession)
	s.mux.HandleFunc("/listings", s.handleListings)
	s.mux.HandleFunc("/listings/", s.handleListingByID)
	s.mux.HandleFunc("/voice/utterances", s.handleVoiceUtterance)
	s.mux.HandleFunc("/chats", s.handleChats)
	s.mux.HandleFunc("/chats/", s.handleChatByID)
	s.mux.HandleFunc("/market", s.handleMarket)
	s.mux.HandleFunc("/market/insight", s.handleMarketInsight)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type sessionRequest struct {
	Role domain.Role `json:"role"`
}

type sessionResponse struct {
	Role  domain.Role `json:"role"`
	Token string      `json:"token,omitempty"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, sessionResponse{Role: s.viewerRole(r)})
	case http.MethodPost:
		var req sessionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := s.app.SetRole(req.Role); err != nil {
			writeAppError(w, err)
			return
		}
		resp := sessionResponse{Role: req.Role}
		if s.sessions != nil {
			token, err := s.sessions.Issue(req.Role)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "could not issue session token")
				return
			}
			resp.Token = token
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		methodNotAllowed(w)
	}
}

// listingView is a listing annotated with the text the caller should show
// first for their role.
type listingView struct {
	domain.Listing
	PrimaryText   string `json:"primaryText"`
	SecondaryText string `json:"secondaryText"`
}

func newListingView(listing domain.Listing, viewer domain.Role) listingView {
	return listingView{
		Listing:       listing,
		PrimaryText:   domain.ListingPrimary(listing.Description, viewer),
		SecondaryText: domain.ListingSecondary(listing.Description, viewer),
	}
}

func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		viewer := s.viewerRole(r)
		query := r.URL.Query().Get("q")
		category := r.URL.Query().Get("category")
		listings := s.app.SearchListings(query, category)
		views := make([]listingView, 0, len(listings))
		for _, listing := range listings {
			views = append(views, newListingView(listing, viewer))
		}
		writeJSON(w, http.StatusOK, map[string]any{"listings": views})
	case http.MethodPost:
		var draft app.Draft
		if !decodeBody(w, r, &draft) {
			return
		}
		listing, err := s.app.ConfirmDraft(draft)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, newListingView(listing, s.viewerRole(r)))
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListingByID(w http.ResponseWriter, r *http.Request) {
	id, action := splitResourcePath(r.URL.Path, "/listings/")
	if id == "" {
		writeError(w, http.StatusNotFound, "listing id required")
		return
	}
	switch action {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		listing, ok := s.app.ListingByID(id)
		if !ok {
			writeError(w, http.StatusNotFound, "listing not found")
			return
		}
		writeJSON(w, http.StatusOK, newListingView(listing, s.viewerRole(r)))
	case "sold":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		listing, err := s.app.MarkListingSold(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newListingView(listing, s.viewerRole(r)))
	case "photo":
		s.handleListingPhoto(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleListingPhoto(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.photos == nil {
		writeError(w, http.StatusNotImplemented, "photo storage not configured")
		return
	}
	if _, ok := s.app.ListingByID(id); !ok {
		writeError(w, http.StatusNotFound, "listing not found")
		return
	}
	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	body := http.MaxBytesReader(w, r.Body, maxPhotoBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "photo too large")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "photo body required")
		return
	}
	key := path.Join("listings", id, util.NewID())
	if err := s.photos.Put(r.Context(), key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		writeError(w, http.StatusBadGateway, "photo upload failed")
		return
	}
	url, err := s.photos.PresignGet(r.Context(), key, photoLinkTTL)
	if err != nil {
		writeError(w, http.StatusBadGateway, "photo link failed")
		return
	}
	listing, err := s.app.SetListingImage(id, url)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newListingView(listing, s.viewerRole(r)))
}

type voiceRequest struct {
	Language domain.Language `json:"language"`
}

type voiceResponse struct {
	Utterance string          `json:"utterance"`
	Language  domain.Language `json:"language"`
	Draft     *app.Draft      `json:"draft"`
}

func (s *Server) handleVoiceUtterance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.voice == nil {
		writeError(w, http.StatusNotImplemented, "voice capture not configured")
		return
	}
	var req voiceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	lang := req.Language
	if lang == "" {
		lang = s.viewerRole(r).Tongue()
	}
	utterance, err := s.voice.Capture(r.Context(), lang)
	if err != nil {
		if errors.Is(err, voice.ErrNoSamples) {
			writeError(w, http.StatusBadRequest, "no utterance available for language")
			return
		}
		writeError(w, http.StatusBadGateway, "voice capture failed")
		return
	}
	resp := voiceResponse{Utterance: utterance.Text, Language: utterance.Language}
	if draft, ok := s.app.ComposeDraft(r.Context(), utterance.Text, utterance.Language); ok {
		resp.Draft = &draft
	}
	writeJSON(w, http.StatusOK, resp)
}

type chatRequest struct {
	ListingID string `json:"listingId"`
}

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]any{"chats": s.app.Sessions()})
	case http.MethodPost:
		var req chatRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.ListingID) == "" {
			writeError(w, http.StatusBadRequest, "listingId is required")
			return
		}
		session, err := s.app.StartOrResumeChat(req.ListingID, vendorParticipantID, buyerParticipantID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, session)
	default:
		methodNotAllowed(w)
	}
}

// messageView is a message annotated with the text the caller should show
// first for their role.
type messageView struct {
	domain.Message
	PrimaryText   string `json:"primaryText"`
	SecondaryText string `json:"secondaryText"`
}

type sendMessageRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleChatByID(w http.ResponseWriter, r *http.Request) {
	id, action := splitResourcePath(r.URL.Path, "/chats/")
	if id == "" {
		writeError(w, http.StatusNotFound, "chat id required")
		return
	}
	switch action {
	case "":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		session, ok := s.app.SessionByID(id)
		if !ok {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		writeJSON(w, http.StatusOK, session)
	case "messages":
		s.handleChatMessages(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleChatMessages(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		session, ok := s.app.SessionByID(id)
		if !ok {
			writeError(w, http.StatusNotFound, "chat not found")
			return
		}
		viewer := s.viewerRole(r)
		views := make([]messageView, 0, len(session.Messages))
		for _, msg := range session.Messages {
			views = append(views, messageView{
				Message:       msg,
				PrimaryText:   domain.MessagePrimary(msg.Text, viewer),
				SecondaryText: domain.MessageSecondary(msg.Text, viewer),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": views})
	case http.MethodPost:
		var req sendMessageRequest
		if !decodeBody(w, r, &req) {
			return
		}
		sender := s.viewerRole(r)
		msg, err := s.app.SendMessage(r.Context(), id, sender, req.Text)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, messageView{
			Message:       msg,
			PrimaryText:   domain.MessagePrimary(msg.Text, sender),
			SecondaryText: domain.MessageSecondary(msg.Text, sender),
		})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prices": market.Items()})
}

type insightResponse struct {
	Item    string             `json:"item"`
	Insight string             `json:"insight"`
	Data    *domain.MarketData `json:"data,omitempty"`
}

func (s *Server) handleMarketInsight(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	item := strings.TrimSpace(r.URL.Query().Get("item"))
	if item == "" {
		writeError(w, http.StatusBadRequest, "item is required")
		return
	}
	resp := insightResponse{Item: item, Insight: s.app.MarketInsight(r.Context(), item)}
	if data, ok := market.Lookup(item); ok {
		resp.Data = &data
	}
	writeJSON(w, http.StatusOK, resp)
}

// viewerRole resolves the caller's role: a valid bearer token wins, the
// persisted active role is the fallback for token-less callers.
func (s *Server) viewerRole(r *http.Request) domain.Role {
	if s.sessions != nil {
		if token, ok := bearerToken(r); ok {
			if role, err := s.sessions.Verify(token); err == nil {
				return role
			}
		}
	}
	return s.app.Role()
}

func splitResourcePath(urlPath, prefix string) (id, action string) {
	rest := strings.TrimPrefix(urlPath, prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return "", ""
	}
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeAppError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, app.ErrListingNotFound), errors.Is(err, app.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, app.ErrTranslationBusy):
		status = http.StatusConflict
	case errors.Is(err, app.ErrListingExists):
		status = http.StatusConflict
	case errors.Is(err, app.ErrEmptyMessage), errors.Is(err, app.ErrInvalidRole), errors.Is(err, app.ErrInvalidListing):
		status = http.StatusBadRequest
	case errors.Is(err, app.ErrNotLoaded):
		status = http.StatusServiceUnavailable
	}
	writeError(w, status, err.Error())
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
