package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/KalilovM/topshopes-backend/pkg/errors"
	"github.com/KalilovM/topshopes-backend/pkg/pagination"
	"github.com/KalilovM/topshopes-backend/pkg/types"
)

func invalidField(field, reason string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, field+" "+reason).
		WithDetails([]types.FieldError{{Field: field, Reason: reason}})
}

// ParseUUIDParam reads a required uuid path parameter.
func ParseUUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, invalidField(name, "is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, invalidField(name, "must be a valid uuid")
	}
	return id, nil
}

// QueryInt reads an optional integer query parameter bounded by [lo, hi].
func QueryInt(r *http.Request, key string, fallback, lo, hi int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidField(key, "must be an integer")
	}
	if value < lo || value > hi {
		return 0, invalidField(key, "must be between "+strconv.Itoa(lo)+" and "+strconv.Itoa(hi))
	}
	return value, nil
}

// ParsePagination reads limit and cursor query parameters. The cursor is
// decoded up front so a tampered value fails before any query runs.
func ParsePagination(r *http.Request) (pagination.Params, error) {
	limit, err := QueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	params := pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}
	if params.Cursor != "" {
		if _, err := pagination.ParseCursor(params.Cursor); err != nil {
			return pagination.Params{}, invalidField("cursor", "is malformed")
		}
	}
	return params, nil
}
