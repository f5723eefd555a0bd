package service

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/noah-isme/sma-portal-api/pkg/database"
	appErrors "github.com/noah-isme/sma-portal-api/pkg/errors"
)

// storeError classifies a repository failure as unavailable or internal.
func storeError(err error, message string) *appErrors.Error {
	if database.IsUnavailable(err) {
		return appErrors.WrapAs(appErrors.ErrStoreUnavailable, err, "")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// lookupError maps a failed single-row access addressed by id. A missing row
// and an id the store cannot parse both mean the entity does not exist.
func lookupError(err error, notFound, message string) *appErrors.Error {
	if errors.Is(err, sql.ErrNoRows) || database.IsInvalidInput(err) {
		return appErrors.WrapAs(appErrors.ErrNotFound, err, notFound)
	}
	return storeError(err, message)
}

// checkID rejects ids that cannot name any row before the store is queried.
func checkID(id, notFound string) error {
	if _, err := uuid.Parse(id); err != nil {
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	return nil
}
