package services

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/bizdesk/internal/common"
)

// domainErrors pass through services unchanged; anything else coming out
// of a store is a persistence failure.
var domainErrors = []error{
	common.ErrorNotFound,
	common.ErrAlreadyExists,
	common.ErrValidation,
	common.ErrUnauthenticated,
	common.ErrForbidden,
	common.ErrAccountLocked,
	common.ErrSessionMismatch,
	common.ErrNotActivated,
	common.ErrInvalidPassword,
	common.ErrPayloadTooLarge,
	common.ErrExtensionDenied,
	common.ErrMailNotDelivered,
	common.ErrPersistence,
}

func isDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func storeError(err error) error {
	if err == nil || isDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: %v", common.ErrPersistence, err)
}
