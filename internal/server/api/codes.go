// Package api exposes the batch upload pipeline over HTTP. Responses carry
// opaque message/error codes; human-readable details go to the log only.
package api

// Error and message codes returned to clients.
const (
	codeServerError          = "API_SERVER_ERROR_GENERIC"
	codeUnauthorized         = "API_AUTH_UNAUTHORIZED"
	codeForbidden            = "API_AUTH_FORBIDDEN"
	codeInvalidWebhookSecret = "API_AUTH_INVALID_WEBHOOK_SECRET"
	codeInvalidParameter     = "API_INVALID_PARAMETER"

	codeUploadMissingFields    = "API_UPLOAD_MISSING_FIELDS"
	codeUploadInvalidImageType = "API_UPLOAD_INVALID_IMAGE_TYPE"
	codeUploadBatchTooLarge    = "API_UPLOAD_BATCH_TOO_LARGE"
	codeUploadActiveBatch      = "API_UPLOAD_ACTIVE_BATCH_EXISTS"

	codeConfirmMissingDetails = "API_UPLOAD_CONFIRM_MISSING_DETAILS"
	codeConfirmSuccess        = "API_UPLOAD_CONFIRM_SUCCESS"
	codeConfirmNoPending      = "API_UPLOAD_CONFIRM_NO_PENDING_RECORD"

	codeBatchCompleteInvalid = "API_BATCH_COMPLETE_INVALID"
	codeBatchCompleteOK      = "API_BATCH_COMPLETE_ACK"

	codeDownloadMissingKey = "API_DOWNLOAD_MISSING_KEY"
	codeFileMissingKey     = "API_FILE_MISSING_KEY"
	codeFileDeleteSuccess  = "API_FILE_DELETE_SUCCESS"
)

type errorResponse struct {
	ErrorCode string `json:"errorCode"`
	Parameter string `json:"parameter,omitempty"`
}

type messageResponse struct {
	MessageCode string `json:"messageCode"`
}
