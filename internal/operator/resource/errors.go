package resource

import (
	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/imamik/kafka-operator/internal/util/retry"
)

// ClassifyAPIError maps API server errors onto the reconciliation error taxonomy.
// Errors it does not recognize are returned unchanged.
func ClassifyAPIError(err error) error {
	switch {
	case err == nil:
		return nil
	case apierrors.IsConflict(err),
		apierrors.IsAlreadyExists(err),
		apierrors.IsServerTimeout(err),
		apierrors.IsTimeout(err),
		apierrors.IsTooManyRequests(err),
		apierrors.IsServiceUnavailable(err),
		apierrors.IsInternalError(err):
		return retry.Transient(err)
	case apierrors.IsInvalid(err), apierrors.IsBadRequest(err):
		return retry.Configuration(err)
	default:
		return err
	}
}
