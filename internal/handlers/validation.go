package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/BradenHooton/reportauth/internal/auth"
	"github.com/BradenHooton/reportauth/internal/models"
	pkghttp "github.com/BradenHooton/reportauth/pkg/http"
)

// maxBodyBytes bounds request bodies; every payload here is a small JSON object.
const maxBodyBytes = 64 << 10

// Global validator instance (reused across all handlers)
var validate = models.NewValidator()

// ValidateRequest validates a request struct using go-playground/validator.
// It returns a *models.ValidationError naming the first failing field.
func ValidateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		return models.ValidationErrorFrom(err)
	}
	return nil
}

// decodeAndValidate reads a JSON body into dst and validates it. It writes the
// 400 response itself and reports whether the handler should continue.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			pkghttp.WriteBadRequest(w, "request body is required")
			return false
		}
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return false
	}
	if err := ValidateRequest(dst); err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// pathUserID parses the {id} URL parameter.
func pathUserID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return id, nil
}

// queryInt reads a non-negative integer query parameter, falling back to def.
func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

// actorFrom identifies the authenticated caller for audit attribution.
func actorFrom(r *http.Request, ipConfig *pkghttp.IPConfig) models.Actor {
	actor := models.Actor{Origin: originFrom(r, ipConfig)}
	if claims := auth.GetUserFromContext(r); claims != nil {
		id := claims.UserID
		actor.UserID = &id
		actor.Username = claims.Username
	}
	return actor
}

func originFrom(r *http.Request, ipConfig *pkghttp.IPConfig) models.OriginMetadata {
	return models.OriginMetadata{
		IPAddress: pkghttp.ExtractClientIP(r, ipConfig),
		UserAgent: pkghttp.ExtractUserAgent(r),
	}
}
