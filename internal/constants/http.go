package constants

const (
	APIFieldRequestID = "request_id"
)

const (
	ContentTypeJSON      = "application/json"
	ContentTypeMultipart = "multipart/form-data"
	ContentTypeCSV       = "text/csv"
)

const (
	HeaderAccept         = "Accept"
	HeaderAuthorization  = "Authorization"
	HeaderContentLength  = "Content-Length"
	HeaderContentType    = "Content-Type"
	HeaderOrigin         = "Origin"
	HeaderXAPIKey        = "X-API-Key"
	HeaderXRequestID     = "X-Request-ID"
	HeaderXRequestedWith = "X-Requested-With"
)
