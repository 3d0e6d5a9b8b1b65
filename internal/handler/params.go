// Package handler holds request parsing shared by the resource handlers.
package handler

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/medidesk/practice-api/internal/model"
	apperrors "github.com/medidesk/practice-api/pkg/errors"
	"github.com/medidesk/practice-api/pkg/httputil"
)

// PathID parses the named path parameter as a UUID. On failure it writes a
// 400 response and returns false.
func PathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(fmt.Sprintf("invalid %s", name), err))
		return uuid.Nil, false
	}
	return id, true
}

// QueryUUID returns nil when the parameter is absent.
func QueryUUID(c *gin.Context, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid %s", name), err)
	}
	return &id, nil
}

// QueryTime accepts RFC 3339 timestamps or plain dates (midnight UTC).
func QueryTime(c *gin.Context, name string) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, apperrors.BadRequest(fmt.Sprintf("%s must be an RFC 3339 timestamp or YYYY-MM-DD date", name), nil)
}

func QueryInt(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.BadRequest(fmt.Sprintf("%s must be an integer", name), err)
	}
	return n, nil
}

// Pagination reads page and page_size and clamps them.
func Pagination(c *gin.Context) (model.Pagination, error) {
	page, err := QueryInt(c, "page", 1)
	if err != nil {
		return model.Pagination{}, err
	}
	size, err := QueryInt(c, "page_size", model.DefaultPageSize)
	if err != nil {
		return model.Pagination{}, err
	}
	return model.Pagination{Page: page, PageSize: size}.Normalize(), nil
}
