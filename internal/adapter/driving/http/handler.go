package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ayursetu/setu/internal/auth"
	"github.com/ayursetu/setu/internal/config"
	"github.com/ayursetu/setu/internal/core/domain"
	"github.com/ayursetu/setu/internal/core/service"
	"github.com/ayursetu/setu/internal/metrics"
)

type ctxKey int

const claimsKey ctxKey = 0

// Handler is the application shell's server side: REST surface for
// auth, directory, records, herbs and the scene, plus the signaling
// socket served by the hub.
type Handler struct {
	Directory *service.Directory
	Herbs     *service.Herbs
	Composer  *service.Composer
	Hub       *Hub
	Metrics   *metrics.Metrics

	cfg config.Config
	log zerolog.Logger
	now func() time.Time
}

func NewHandler(cfg config.Config, directory *service.Directory, herbs *service.Herbs, composer *service.Composer, hub *Hub, m *metrics.Metrics, log zerolog.Logger) *Handler {
	return &Handler{
		Directory: directory,
		Herbs:     herbs,
		Composer:  composer,
		Hub:       hub,
		Metrics:   m,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

func (h *Handler) NewRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if h.cfg.AllowedOrigin != "" {
		r.Use(h.cors)
	}

	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.requireAuth)
		r.Get("/doctors", h.ListDoctors)
		r.Get("/records", h.ListRecords)
		r.Post("/records", h.SaveRecord)
		r.Get("/herbs/suggest", h.SuggestHerbs)
		r.Get("/scene/layout", h.SceneLayout)
		r.Post("/scene/tint", h.SceneTint)
	})

	if h.Metrics != nil {
		r.Handle("/metrics", h.Metrics.Handler())
	}
	r.Get("/ws", h.ServeWS)

	return r
}

func (h *Handler) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", h.cfg.AllowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "authorization required")
			return
		}
		claims, err := auth.Validate(h.cfg.JWTSecret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

func claimsFrom(r *http.Request) *auth.Claims {
	claims, _ := r.Context().Value(claimsKey).(*auth.Claims)
	return claims
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := domain.NewUser(req.Name, req.Email, req.Password, domain.Role(req.Role))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Directory.RegisterUser(r.Context(), user); err != nil {
		if errors.Is(err, domain.ErrDuplicateEmail) {
			writeError(w, http.StatusConflict, "an account with this email already exists")
			return
		}
		h.log.Error().Err(err).Msg("Registration failed")
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}
	if h.Metrics != nil {
		h.Metrics.Registrations.Inc()
	}
	h.issueToken(w, user, http.StatusCreated)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	user, err := h.Directory.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		h.log.Error().Err(err).Msg("Login failed")
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if h.Metrics != nil {
		h.Metrics.Logins.Inc()
	}
	h.issueToken(w, user, http.StatusOK)
}

type userView struct {
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

func (h *Handler) issueToken(w http.ResponseWriter, user domain.User, status int) {
	token, err := auth.Generate(h.cfg.JWTSecret, user, h.cfg.TokenTTL)
	if err != nil {
		h.log.Error().Err(err).Msg("Token generation failed")
		writeError(w, http.StatusInternalServerError, "could not generate token")
		return
	}
	writeJSON(w, status, map[string]any{
		"token": token,
		"user":  userView{Name: user.Name, Email: user.Email, Role: user.Role},
	})
}

func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	doctors, err := h.Directory.ListUsersByRole(r.Context(), domain.RoleDoctor)
	if err != nil {
		h.log.Error().Err(err).Msg("Doctor listing failed")
		writeError(w, http.StatusInternalServerError, "failed to list doctors")
		return
	}
	out := make([]userView, 0, len(doctors))
	for _, d := range doctors {
		out = append(out, userView{Name: d.Name, Email: d.Email, Role: d.Role})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	recs, err := h.Directory.ListRecordsFor(r.Context(), claims.Email, claims.Role)
	if err != nil {
		h.log.Error().Err(err).Msg("Record listing failed")
		writeError(w, http.StatusInternalServerError, "failed to list records")
		return
	}
	if recs == nil {
		recs = []domain.ClinicalRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

type saveRecordRequest struct {
	PatientName  string `json:"patientName"`
	PatientEmail string `json:"patientEmail"`
	Prescription string `json:"prescription"`
}

func (h *Handler) SaveRecord(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	if claims.Role != domain.RoleDoctor {
		writeError(w, http.StatusForbidden, "only doctors save prescriptions")
		return
	}
	var req saveRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	doctor := domain.User{Name: claims.Name, Email: claims.Email, Role: claims.Role}
	rec, err := domain.NewClinicalRecord(doctor,
		domain.Counterpart{Name: req.PatientName, Email: req.PatientEmail},
		req.Prescription, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.Directory.AppendRecord(r.Context(), rec); err != nil {
		h.log.Error().Err(err).Msg("Record append failed")
		writeError(w, http.StatusInternalServerError, "failed to save record")
		return
	}
	if h.Metrics != nil {
		h.Metrics.RecordsWritten.Inc()
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *Handler) SuggestHerbs(w http.ResponseWriter, r *http.Request) {
	suggestions := h.Herbs.Suggest(r.URL.Query().Get("q"))
	if suggestions == nil {
		suggestions = []domain.Herb{}
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func (h *Handler) SceneLayout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Composer.Layout())
}

type tintRequest struct {
	State string `json:"state"`
}

func (h *Handler) SceneTint(w http.ResponseWriter, r *http.Request) {
	var req tintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.Composer.ApplyTint(service.TintState(req.State)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": req.State})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
