package dynamodb

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"

	appErrors "promptvault-backend/pkg/errors"
)

// storeError classifies a DynamoDB call failure into the application error
// taxonomy. Throttling and capacity errors are retryable unavailability;
// everything else is an internal failure.
func storeError(err error, operation string) error {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "ProvisionedThroughputExceededException", "RequestLimitExceeded", "ThrottlingException":
			return appErrors.NewUnavailable(fmt.Sprintf("%s throttled", operation), err)
		case "ResourceNotFoundException":
			return appErrors.NewInternal(fmt.Sprintf("%s failed: table or index missing", operation), err)
		}
	}
	return appErrors.Wrap(err, operation+" failed")
}
