package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"civilregistry/internal/apperr"
	"civilregistry/internal/auth"
	"civilregistry/internal/models"
)

const (
	maxRequestBody = 1 << 20

	msgInvalidBody = "صيغة الطلب غير صحيحة"
	msgInvalidID   = "المعرف غير صحيح"
)

// decodeJSON reads a single JSON object from the request body. An empty body
// decodes to the zero value.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Wrap(apperr.CodeValidation, msgInvalidBody, err)
	}
	return nil
}

func pageRequest(r *http.Request) models.PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("perPage"))
	return models.PageRequest{Page: page, PerPage: perPage}.Normalize()
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		return 0, apperr.Validation(msgInvalidID, map[string][]string{name: {msgInvalidID}})
	}
	return id, nil
}

// identity returns the caller RequireAuth resolved. Handlers mounted outside
// the auth group must not call it.
func identity(r *http.Request) (auth.Identity, error) {
	id, ok := auth.IdentityFrom(r.Context())
	if !ok {
		return auth.Identity{}, apperr.New(apperr.CodeUnauthenticated, apperr.MsgUnauthenticated)
	}
	return id, nil
}
